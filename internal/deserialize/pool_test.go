// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package deserialize

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/eosio-contract-api/chain-indexer-go/internal/abi"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func encodeVarUint(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func TestPoolDecodeAction(t *testing.T) {
	structs := map[string]abi.Struct{
		"transfer": {
			Name: "transfer",
			Fields: []abi.Field{
				{Name: "from", Type: "name"},
				{Name: "to", Type: "name"},
				{Name: "quantity", Type: "asset"},
				{Name: "memo", Type: "string"},
			},
		},
	}
	def := abi.New("eosio.token", map[string]string{"transfer": "transfer"}, nil, structs, []byte{1})

	var data []byte
	data = append(data, make([]byte, 8)...) // from (name, 0)
	data = append(data, make([]byte, 8)...) // to (name, 0)
	data = append(data, make([]byte, 8)...) // asset.amount
	data = append(data, make([]byte, 8)...) // asset.symbol
	data = append(data, encodeVarUint(0)...) // empty memo string

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	pool := NewPool(ctx, 2)
	defer pool.Close()

	value, err := pool.Decode(ctx, Request{
		Kind:     KindAction,
		Contract: "eosio.token",
		TypeName: "transfer",
		Data:     data,
		ABI:      def,
	})
	require.NoError(t, err)
	m, ok := value.(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "", m["memo"])
}

func TestPoolDecodeErrorsOnTrailingBytes(t *testing.T) {
	structs := map[string]abi.Struct{
		"simple": {Name: "simple", Fields: []abi.Field{{Name: "v", Type: "uint8"}}},
	}
	def := abi.New("c", map[string]string{"act": "simple"}, nil, structs, []byte{1})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	pool := NewPool(ctx, 1)
	defer pool.Close()

	_, err := pool.Decode(ctx, Request{
		Kind:     KindAction,
		TypeName: "simple",
		Data:     []byte{1, 2, 3},
		ABI:      def,
	})
	require.Error(t, err)
	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
}

func TestDecodeTableDeltaArrayUnsupportedVariant(t *testing.T) {
	r := newByteReader(append(encodeVarUint(1), encodeVarUint(3)...)) // 1 entry, variant 3
	_, err := decodeTableDeltaArray(nil, fallbackBackend{}, r)
	require.Error(t, err)
	var unsupported *UnsupportedDelta
	require.ErrorAs(t, err, &unsupported)
}
