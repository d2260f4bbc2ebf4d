// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package statereceiver

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eosio-contract-api/chain-indexer-go/internal/abi"
	"github.com/eosio-contract-api/chain-indexer-go/internal/chain"
	"github.com/eosio-contract-api/chain-indexer-go/internal/contractdb"
	"github.com/eosio-contract-api/chain-indexer-go/internal/deserialize"
	"github.com/eosio-contract-api/chain-indexer-go/internal/handlers"
	"github.com/eosio-contract-api/chain-indexer-go/internal/reader"
)

type fakeHandler struct {
	name  string
	scope handlers.Scope
}

func (f *fakeHandler) Name() string          { return f.name }
func (f *fakeHandler) Scope() handlers.Scope { return f.scope }
func (f *fakeHandler) Init(context.Context, *handlers.Deps) error       { return nil }
func (f *fakeHandler) DeleteDB(context.Context, *handlers.Deps) error   { return nil }
func (f *fakeHandler) OnBlockStart(context.Context, chain.Block) error  { return nil }
func (f *fakeHandler) OnBlockComplete(context.Context, *contractdb.Tx) error { return nil }
func (f *fakeHandler) OnCommit(context.Context) error                   { return nil }
func (f *fakeHandler) OnAction(context.Context, *contractdb.Tx, chain.Block, string, chain.ActionTrace) error {
	return nil
}
func (f *fakeHandler) OnTableChange(context.Context, *contractdb.Tx, chain.Block, chain.TableDelta) error {
	return nil
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

func encodeString(s string) []byte {
	var buf bytes.Buffer
	buf.Write(encodeVarUint(uint64(len(s))))
	buf.WriteString(s)
	return buf.Bytes()
}

func newTestReceiver(t *testing.T) *Receiver {
	t.Helper()
	cache, err := abi.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	structs := map[string]abi.Struct{
		"transfer": {Name: "transfer", Fields: []abi.Field{
			{Name: "from", Type: "name"}, {Name: "to", Type: "name"},
			{Name: "quantity", Type: "asset"}, {Name: "memo", Type: "string"},
		}},
		"account": {Name: "account", Fields: []abi.Field{
			{Name: "balance", Type: "asset"},
		}},
	}
	tokenABI := abi.New("eosio.token",
		map[string]string{"transfer": "transfer"},
		map[string]string{"accounts": "account"},
		structs, []byte{1})
	require.NoError(t, cache.Install("eosio.token", 0, tokenABI))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	pool := deserialize.NewPool(ctx, 2)
	t.Cleanup(func() { pool.Close() })

	h := &fakeHandler{
		name: "tokentest",
		scope: handlers.Scope{
			Actions: []handlers.Filter{{Account: "eosio.token", Name: "transfer", Deserialize: true}},
			Tables:  []handlers.Filter{{Account: "eosio.token", Name: "accounts", Deserialize: true}},
		},
	}

	return New(nil, cache, pool, "tokentest-reader", []handlers.Handler{h})
}

func assetBytes(amount uint64) []byte {
	b := make([]byte, 16)
	binary.LittleEndian.PutUint64(b[:8], amount)
	return b // symbol left zero, acceptable for this decode-path test
}

func TestDecodeActionsRoutesThroughScopeAndABI(t *testing.T) {
	rcv := newTestReceiver(t)

	var action bytes.Buffer
	action.WriteByte(0) // action_trace_v0
	action.Write(encodeVarUint(0))
	action.Write(encodeVarUint(0))
	action.Write(encodeString("eosio.token"))
	action.Write(encodeString("eosio.token"))
	action.Write(encodeString("transfer"))
	action.Write(encodeVarUint(0)) // no authorizations, for test simplicity

	var data bytes.Buffer
	data.Write(make([]byte, 8)) // from
	data.Write(make([]byte, 8)) // to
	data.Write(assetBytes(500))
	data.Write(encodeVarUint(0)) // empty memo
	action.Write(encodeVarUint(uint64(data.Len())))
	action.Write(data.Bytes())
	action.WriteByte(0)                          // context_free
	action.Write(make([]byte, 8))                // elapsed
	action.Write(encodeString(""))                // console
	action.Write(make([]byte, 8))                // global_sequence = 0

	var txTrace bytes.Buffer
	txTrace.WriteByte(0) // transaction_trace_v0
	txTrace.Write(make([]byte, 32))
	txTrace.WriteByte(0)          // status
	txTrace.Write(make([]byte, 4)) // cpu_usage_us
	txTrace.Write(encodeVarUint(0))
	txTrace.Write(make([]byte, 8)) // elapsed
	txTrace.Write(make([]byte, 8)) // net_usage
	txTrace.WriteByte(0)           // scheduled
	txTrace.Write(encodeVarUint(1))
	txTrace.Write(action.Bytes())

	var raw bytes.Buffer
	raw.Write(encodeVarUint(1))
	raw.Write(txTrace.Bytes())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	txs, err := rcv.decodeTransactions(ctx, 10, raw.Bytes())
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Len(t, txs[0].Traces, 1)
	require.NotNil(t, txs[0].Traces[0].Decoded)

	decoded, ok := txs[0].Traces[0].Decoded.(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "", decoded["memo"])
}

func TestAssembleBlockSkipsEmptyPayloads(t *testing.T) {
	rcv := newTestReceiver(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	blk, err := rcv.assembleBlock(ctx, reader.Delivery{
		ThisBlock: reader.BlockPosition{BlockNum: 5, BlockID: "00"},
	})
	require.NoError(t, err)
	require.Equal(t, uint32(5), blk.BlockNum)
	require.Empty(t, blk.Transactions)
	require.Empty(t, blk.Deltas)
}
