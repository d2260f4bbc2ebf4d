// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package deserialize

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/log"

	"github.com/eosio-contract-api/chain-indexer-go/internal/abi"
)

var (
	errShortBuffer   = errors.New("short buffer")
	errVarintOverflow = errors.New("varint overflow")
	errUnknownType   = errors.New("unknown abi type")
)

// Backend decodes one ABI-typed value out of a byte cursor. Two backends
// may coexist per spec §4.A: a native decoder (in this module only a stub in
// backend_native.go) and a portable pure-Go fallback. Both satisfy this
// same interface so the pool can swap between them without the caller
// knowing which one is in play.
type Backend interface {
	// Name identifies the backend for logging ("native" or "fallback").
	Name() string
	// DecodeType decodes one value of the named type out of r, against the
	// struct/alias definitions in def.
	DecodeType(def *abi.ABI, typeName string, r *byteReader) (interface{}, error)
}

// ProbeNative reports whether the native backend is usable in this process.
// It returns the nativeAvailable constant from backend_native.go, which is
// false: that file has no build constraint and no cgo code, so the probe
// always fails. If it returns false the pool falls back silently and logs once, per
// spec §4.A.
func ProbeNative() bool {
	return nativeAvailable
}

// SelectBackend returns the native backend if it probes healthy, otherwise
// the portable fallback, logging the decision exactly once.
func SelectBackend() Backend {
	if ProbeNative() {
		log.Info("deserializer: using native ABI codec")
		return newNativeBackend()
	}
	log.Warn("deserializer: native ABI codec unavailable, falling back to portable decoder")
	return newFallbackBackend()
}

// fallbackBackend is the always-available pure-Go ABI decoder. It walks the
// struct/field tree recursively, the same dispatch-per-type-then-recurse
// shape a bytecode interpreter uses to dispatch per opcode and recurse into
// call frames.
type fallbackBackend struct{}

func newFallbackBackend() Backend { return fallbackBackend{} }

func (fallbackBackend) Name() string { return "fallback" }

func (b fallbackBackend) DecodeType(def *abi.ABI, typeName string, r *byteReader) (interface{}, error) {
	return decodeValue(def, typeName, r)
}

// decodeValue dispatches on typeName: builtins are decoded directly,
// "<type>[]" recurses into an array, "<type>?" recurses into an optional,
// and anything else must resolve to a named struct in def.Structs.
func decodeValue(def *abi.ABI, typeName string, r *byteReader) (interface{}, error) {
	if n := len(typeName); n > 2 && typeName[n-2:] == "[]" {
		return decodeArray(def, typeName[:n-2], r)
	}
	if n := len(typeName); n > 1 && typeName[n-1:] == "?" {
		present, err := r.readBool()
		if err != nil {
			return nil, fmt.Errorf("optional %s presence: %w", typeName, err)
		}
		if !present {
			return nil, nil
		}
		return decodeValue(def, typeName[:n-1], r)
	}

	if decodeBuiltin, ok := builtins[typeName]; ok {
		return decodeBuiltin(r)
	}

	if s, ok := def.Structs[typeName]; ok {
		return decodeStruct(def, s, r)
	}

	return nil, fmt.Errorf("type %q: %w", typeName, errUnknownType)
}

func decodeArray(def *abi.ABI, elemType string, r *byteReader) (interface{}, error) {
	n, err := r.readVarUint()
	if err != nil {
		return nil, fmt.Errorf("array length: %w", err)
	}
	out := make([]interface{}, 0, n)
	for i := uint64(0); i < n; i++ {
		v, err := decodeValue(def, elemType, r)
		if err != nil {
			return nil, fmt.Errorf("array element %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func decodeStruct(def *abi.ABI, s abi.Struct, r *byteReader) (interface{}, error) {
	out := make(map[string]interface{}, len(s.Fields))
	if s.Base != "" {
		base, ok := def.Structs[s.Base]
		if !ok {
			return nil, fmt.Errorf("struct %q: unknown base %q", s.Name, s.Base)
		}
		baseVal, err := decodeStruct(def, base, r)
		if err != nil {
			return nil, fmt.Errorf("struct %q base: %w", s.Name, err)
		}
		for k, v := range baseVal.(map[string]interface{}) {
			out[k] = v
		}
	}
	for _, f := range s.Fields {
		v, err := decodeValue(def, f.Type, r)
		if err != nil {
			return nil, fmt.Errorf("struct %q field %q: %w", s.Name, f.Name, err)
		}
		out[f.Name] = v
	}
	return out, nil
}

type builtinDecoder func(r *byteReader) (interface{}, error)

var builtins = map[string]builtinDecoder{
	"bool": func(r *byteReader) (interface{}, error) { return r.readBool() },
	"uint8": func(r *byteReader) (interface{}, error) { return r.readUint8() },
	"uint16": func(r *byteReader) (interface{}, error) { return r.readUint16() },
	"uint32": func(r *byteReader) (interface{}, error) { return r.readUint32() },
	"uint64": func(r *byteReader) (interface{}, error) { return r.readUint64() },
	"int64": func(r *byteReader) (interface{}, error) { return r.readInt64() },
	"varuint32": func(r *byteReader) (interface{}, error) { return r.readVarUint() },
	"float64": func(r *byteReader) (interface{}, error) { return r.readFloat64() },
	"name": func(r *byteReader) (interface{}, error) { return r.readUint64() }, // symbol-coded account name
	"string": func(r *byteReader) (interface{}, error) { return r.readString() },
	"bytes": func(r *byteReader) (interface{}, error) {
		n, err := r.readVarUint()
		if err != nil {
			return nil, err
		}
		return r.readBytes(int(n))
	},
	"checksum256": func(r *byteReader) (interface{}, error) { return r.readBytes(32) },
	"public_key": func(r *byteReader) (interface{}, error) { return r.readBytes(34) },
	"asset": func(r *byteReader) (interface{}, error) {
		amount, err := r.readInt64()
		if err != nil {
			return nil, err
		}
		symbol, err := r.readUint64()
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"amount": amount, "symbol": symbol}, nil
	},
}
