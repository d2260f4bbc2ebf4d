// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package handlers

import (
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// Filter is one scope entry: "account:name" with either side allowed to be
// "*", plus whether the matched payload should be handed to the
// deserializer pool before the hook sees it (spec §3 "Scope filter").
type Filter struct {
	Account     string
	Name        string
	Deserialize bool
}

// Matches reports whether account/name satisfies f, treating "*" as a
// wildcard on either field independently.
func (f Filter) Matches(account, name string) bool {
	return (f.Account == "*" || f.Account == account) && (f.Name == "*" || f.Name == name)
}

// ParseFilter reads the "account:actionName" (or "*") shorthand spec.md §3
// describes filters with.
func ParseFilter(spec string, deserialize bool) Filter {
	parts := strings.SplitN(spec, ":", 2)
	if len(parts) != 2 {
		return Filter{Account: "*", Name: "*", Deserialize: deserialize}
	}
	return Filter{Account: parts[0], Name: parts[1], Deserialize: deserialize}
}

// Scope is a handler's declared interest in actions and table deltas.
type Scope struct {
	Actions []Filter
	Tables  []Filter
}

// MatchAction returns the first matching action filter, if any.
func (s Scope) MatchAction(account, name string) (Filter, bool) {
	for _, f := range s.Actions {
		if f.Matches(account, name) {
			return f, true
		}
	}
	return Filter{}, false
}

// MatchTable returns the first matching table filter, if any.
func (s Scope) MatchTable(account, table string) (Filter, bool) {
	for _, f := range s.Tables {
		if f.Matches(account, table) {
			return f, true
		}
	}
	return Filter{}, false
}

// Merged unions every handler's scope, the shape the state receiver needs
// to decide up front whether a trace or delta is worth decoding at all.
// Handlers frequently declare overlapping or identical filters (two
// handlers both watching "eosio.token:transfer"), so the union is deduped
// with a set keyed on the filter value itself, keeping first-seen order so
// the merged scope doesn't depend on which handler happened to register
// a duplicate first.
func Merged(scopes ...Scope) Scope {
	var out Scope

	actions := mapset.NewSet[Filter]()
	tables := mapset.NewSet[Filter]()
	for _, s := range scopes {
		for _, f := range s.Actions {
			if actions.Add(f) {
				out.Actions = append(out.Actions, f)
			}
		}
		for _, f := range s.Tables {
			if tables.Add(f) {
				out.Tables = append(out.Tables, f)
			}
		}
	}
	return out
}
