// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package deserialize

import (
	"fmt"

	"github.com/eosio-contract-api/chain-indexer-go/internal/abi"
)

// systemStructs describes the fixed, chain-level struct layouts nested
// inside a table_delta's row, independent of any contract's own ABI. Only
// the two variants this indexer's handlers ever see are included:
// contract_row (the only one AtomicAssets/AtomicMarket tables use) and
// contract_table (its enclosing table-metadata counterpart). A contract's
// own per-row "value" bytes are decoded separately, against that
// contract's ABI, by the caller once it knows the row's (contract, table)
// pair — this function only peels the chain-level envelope off.
var systemStructs = map[string][]string{
	// struct name -> ordered field list; types are the builtins already
	// registered in backend.go, so decodeValue can resolve them without a
	// Structs map of its own.
	"contract_row":   {"code:name", "scope:name", "table:name", "primary_key:uint64", "payer:name", "value:bytes"},
	"contract_table": {"code:name", "scope:name", "table:name", "payer:name"},
}

// tableDeltaV0 is the only variant of the outer tagged union read from the
// wire: table_delta_v0 is the only one any known State-History server defines.
const tableDeltaV0 = 0

// decodeTableDeltaArray decodes spec §4.A's compound type "array of table
// deltas": a varuint count, then for each entry a variant tag, a delta name
// (declaring which system struct the row bodies use), and an array of
// {present, data} rows. Each row's data is recursively decoded against the
// declared system struct. An unrecognized variant is a fatal
// UnsupportedDelta, matching spec §4.A.
func decodeTableDeltaArray(sys *abi.ABI, backend Backend, r *byteReader) ([]DecodedTableDelta, error) {
	count, err := r.readVarUint()
	if err != nil {
		return nil, fmt.Errorf("table delta array length: %w", err)
	}

	out := make([]DecodedTableDelta, 0, count)
	for i := uint64(0); i < count; i++ {
		variant, err := r.readVarUint()
		if err != nil {
			return nil, fmt.Errorf("table delta %d variant: %w", i, err)
		}
		if variant != tableDeltaV0 {
			return nil, &UnsupportedDelta{Variant: uint8(variant)}
		}

		name, err := r.readString()
		if err != nil {
			return nil, fmt.Errorf("table delta %d name: %w", i, err)
		}
		fields, ok := systemStructs[name]
		if !ok {
			return nil, &UnsupportedDelta{Variant: uint8(variant)}
		}

		rowCount, err := r.readVarUint()
		if err != nil {
			return nil, fmt.Errorf("table delta %d row count: %w", i, err)
		}
		rows := make([]DecodedRow, 0, rowCount)
		for j := uint64(0); j < rowCount; j++ {
			present, err := r.readBool()
			if err != nil {
				return nil, fmt.Errorf("table delta %d row %d present: %w", i, j, err)
			}
			dataLen, err := r.readVarUint()
			if err != nil {
				return nil, fmt.Errorf("table delta %d row %d data length: %w", i, j, err)
			}
			data, err := r.readBytes(int(dataLen))
			if err != nil {
				return nil, fmt.Errorf("table delta %d row %d data: %w", i, j, err)
			}
			decoded, err := decodeSystemStruct(fields, newByteReader(data))
			if err != nil {
				return nil, fmt.Errorf("table delta %d row %d: %w", i, j, err)
			}
			rows = append(rows, DecodedRow{Present: present, Fields: decoded, RawValue: data})
		}
		out = append(out, DecodedTableDelta{Name: name, Rows: rows})
	}
	return out, nil
}

// DecodedTableDelta is the peeled chain-level envelope for one table_delta
// entry; RawValue on each row still needs a second decode pass against the
// owning contract's own ABI before a handler can read it.
type DecodedTableDelta struct {
	Name string
	Rows []DecodedRow
}

// DecodedRow is one present/absent row with its chain-level fields decoded
// and the contract-level payload left as raw bytes in RawValue.
type DecodedRow struct {
	Present  bool
	Fields   map[string]interface{}
	RawValue []byte
}

func decodeSystemStruct(fields []string, r *byteReader) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(fields))
	for _, spec := range fields {
		var fieldName, fieldType string
		for i := 0; i < len(spec); i++ {
			if spec[i] == ':' {
				fieldName, fieldType = spec[:i], spec[i+1:]
				break
			}
		}
		decodeFn, ok := builtins[fieldType]
		if !ok {
			return nil, fmt.Errorf("system struct field %q: %w", fieldName, errUnknownType)
		}
		v, err := decodeFn(r)
		if err != nil {
			return nil, fmt.Errorf("system struct field %q: %w", fieldName, err)
		}
		out[fieldName] = v
	}
	return out, nil
}
