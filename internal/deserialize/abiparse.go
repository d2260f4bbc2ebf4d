// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package deserialize

import (
	"fmt"

	"github.com/eosio-contract-api/chain-indexer-go/internal/abi"
)

// ABIParser implements abi.Parser by decoding the binary abi_def layout:
// version string, then four length-prefixed arrays (type aliases, structs,
// actions, tables). Parsing stops after the tables array: the ricardian
// clauses, error messages, variants and ABI extensions that follow are
// never read.
//
// It is intentionally not a complete binary-ABI decoder — handlers only
// ever need the action/table type names and the struct field layout to
// drive internal/deserialize's recursive decoder.
type ABIParser struct{}

var _ abi.Parser = ABIParser{}

func (ABIParser) ParseABI(contract string, raw []byte) (*abi.ABI, error) {
	r := newByteReader(raw)

	if _, err := r.readString(); err != nil { // version, e.g. "eosio::abi/1.1"
		return nil, fmt.Errorf("abi %s: version: %w", contract, err)
	}

	aliasCount, err := r.readVarUint()
	if err != nil {
		return nil, fmt.Errorf("abi %s: type alias count: %w", contract, err)
	}
	aliases := make(map[string]string, aliasCount)
	for i := uint64(0); i < aliasCount; i++ {
		newName, err := r.readString()
		if err != nil {
			return nil, fmt.Errorf("abi %s: alias %d new_type_name: %w", contract, i, err)
		}
		oldType, err := r.readString()
		if err != nil {
			return nil, fmt.Errorf("abi %s: alias %d type: %w", contract, i, err)
		}
		aliases[newName] = oldType
	}

	structCount, err := r.readVarUint()
	if err != nil {
		return nil, fmt.Errorf("abi %s: struct count: %w", contract, err)
	}
	structs := make(map[string]abi.Struct, structCount)
	for i := uint64(0); i < structCount; i++ {
		s, err := readStructDef(r)
		if err != nil {
			return nil, fmt.Errorf("abi %s: struct %d: %w", contract, i, err)
		}
		structs[s.Name] = s
	}

	actionCount, err := r.readVarUint()
	if err != nil {
		return nil, fmt.Errorf("abi %s: action count: %w", contract, err)
	}
	actions := make(map[string]string, actionCount)
	for i := uint64(0); i < actionCount; i++ {
		name, err := r.readString()
		if err != nil {
			return nil, fmt.Errorf("abi %s: action %d name: %w", contract, i, err)
		}
		typeName, err := r.readString()
		if err != nil {
			return nil, fmt.Errorf("abi %s: action %d type: %w", contract, i, err)
		}
		if _, err := r.readString(); err != nil { // ricardian_contract, unused
			return nil, fmt.Errorf("abi %s: action %d ricardian_contract: %w", contract, i, err)
		}
		actions[name] = typeName
	}

	tableCount, err := r.readVarUint()
	if err != nil {
		return nil, fmt.Errorf("abi %s: table count: %w", contract, err)
	}
	tables := make(map[string]string, tableCount)
	for i := uint64(0); i < tableCount; i++ {
		name, err := r.readString()
		if err != nil {
			return nil, fmt.Errorf("abi %s: table %d name: %w", contract, i, err)
		}
		indexType, err := r.readString()
		if err != nil {
			return nil, fmt.Errorf("abi %s: table %d index_type: %w", contract, i, err)
		}
		_ = indexType
		keyNameCount, err := r.readVarUint()
		if err != nil {
			return nil, fmt.Errorf("abi %s: table %d key_names count: %w", contract, i, err)
		}
		for j := uint64(0); j < keyNameCount; j++ {
			if _, err := r.readString(); err != nil {
				return nil, fmt.Errorf("abi %s: table %d key_names[%d]: %w", contract, i, j, err)
			}
		}
		keyTypeCount, err := r.readVarUint()
		if err != nil {
			return nil, fmt.Errorf("abi %s: table %d key_types count: %w", contract, i, err)
		}
		for j := uint64(0); j < keyTypeCount; j++ {
			if _, err := r.readString(); err != nil {
				return nil, fmt.Errorf("abi %s: table %d key_types[%d]: %w", contract, i, j, err)
			}
		}
		typeName, err := r.readString()
		if err != nil {
			return nil, fmt.Errorf("abi %s: table %d type: %w", contract, i, err)
		}
		tables[name] = typeName
	}

	// decodeValue falls through to builtins first, so an alias (the common
	// case is an alias of a builtin, e.g. "account_name" -> "name") is
	// registered in the package-level builtins table as a decoder for the
	// aliased type, unless its name is already a builtin or a struct of this
	// ABI. The registration is process-wide, not scoped to this ABI.
	for newName, oldType := range aliases {
		if _, isBuiltin := builtins[newName]; isBuiltin {
			continue
		}
		if _, isStruct := structs[newName]; isStruct {
			continue
		}
		builtins[newName] = func(target string) builtinDecoder {
			return func(r *byteReader) (interface{}, error) {
				return decodeValue(&abi.ABI{Structs: structs}, target, r)
			}
		}(oldType)
	}

	return abi.New(contract, actions, tables, structs, raw), nil
}

func readStructDef(r *byteReader) (abi.Struct, error) {
	name, err := r.readString()
	if err != nil {
		return abi.Struct{}, fmt.Errorf("name: %w", err)
	}
	base, err := r.readString()
	if err != nil {
		return abi.Struct{}, fmt.Errorf("base: %w", err)
	}
	fieldCount, err := r.readVarUint()
	if err != nil {
		return abi.Struct{}, fmt.Errorf("field count: %w", err)
	}
	fields := make([]abi.Field, 0, fieldCount)
	for i := uint64(0); i < fieldCount; i++ {
		fname, err := r.readString()
		if err != nil {
			return abi.Struct{}, fmt.Errorf("field %d name: %w", i, err)
		}
		ftype, err := r.readString()
		if err != nil {
			return abi.Struct{}, fmt.Errorf("field %d type: %w", i, err)
		}
		fields = append(fields, abi.Field{Name: fname, Type: ftype})
	}
	return abi.Struct{Name: name, Base: base, Fields: fields}, nil
}
