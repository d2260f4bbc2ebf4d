// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package handlers

import "fmt"

// Args is a handler's argument record, read from the configuration
// document's handler-list entries (spec §6 "handler list with per-handler
// argument records").
type Args map[string]interface{}

// Factory constructs a Handler from its per-handler arguments, mirroring
// the one-method factory shape used throughout this codebase's VM
// construction, generalized from a single fixed type to a name-keyed
// registry since this module loads a configurable handler list instead of
// exactly one VM.
type Factory func(args Args) (Handler, error)

var registry = map[string]Factory{}

// Register adds a Factory under name. Concrete handler packages call this
// from an init func.
func Register(name string, f Factory) {
	registry[name] = f
}

// New constructs the handler registered under name with args.
func New(name string, args Args) (Handler, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("handlers: no factory registered for %q", name)
	}
	return f(args)
}

// Registered lists every currently-registered handler name; the order is
// unspecified.
func Registered() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
