// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package deserialize

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func encodeString(s string) []byte {
	var buf bytes.Buffer
	buf.Write(encodeVarUint(uint64(len(s))))
	buf.WriteString(s)
	return buf.Bytes()
}

func encodeActionTraceV0(receiver, account, name string, data []byte, globalSeq uint64) []byte {
	var buf bytes.Buffer
	buf.WriteByte(actionTraceV0)
	buf.Write(encodeVarUint(0)) // action_ordinal
	buf.Write(encodeVarUint(0)) // creator_action_ordinal
	buf.Write(encodeString(receiver))
	buf.Write(encodeString(account))
	buf.Write(encodeString(name))
	buf.Write(encodeVarUint(1)) // authorization count
	buf.Write(encodeString("alice"))
	buf.Write(encodeString("active"))
	buf.Write(encodeVarUint(uint64(len(data))))
	buf.Write(data)
	buf.WriteByte(0) // context_free = false
	b8 := make([]byte, 8)
	binary.LittleEndian.PutUint64(b8, math.MaxUint64) // elapsed (int64, arbitrary)
	buf.Write(b8)
	buf.Write(encodeString("")) // console
	binary.LittleEndian.PutUint64(b8, globalSeq)
	buf.Write(b8)
	return buf.Bytes()
}

func encodeTransactionTraceV0(txid [32]byte, traces [][]byte) []byte {
	var buf bytes.Buffer
	buf.WriteByte(transactionTraceV0)
	buf.Write(txid[:])
	buf.WriteByte(0) // status
	b4 := make([]byte, 4)
	binary.LittleEndian.PutUint32(b4, 0)
	buf.Write(b4) // cpu_usage_us
	buf.Write(encodeVarUint(0)) // net_usage_words
	b8 := make([]byte, 8)
	buf.Write(b8) // elapsed
	buf.Write(b8) // net_usage
	buf.WriteByte(0) // scheduled
	buf.Write(encodeVarUint(uint64(len(traces))))
	for _, t := range traces {
		buf.Write(t)
	}
	return buf.Bytes()
}

func TestDecodeTransactionTraceArrayRoundTrip(t *testing.T) {
	at := encodeActionTraceV0("eosio.token", "eosio.token", "transfer", []byte("payload"), 99)
	var txid [32]byte
	txid[0] = 0xab
	txBytes := encodeTransactionTraceV0(txid, [][]byte{at})

	var buf bytes.Buffer
	buf.Write(encodeVarUint(1))
	buf.Write(txBytes)

	txs, err := decodeTransactionTraceArray(newByteReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, "ab00000000000000000000000000000000000000000000000000000000000000", txs[0].TxID)
	require.Len(t, txs[0].Traces, 1)

	trace := txs[0].Traces[0]
	require.Equal(t, "eosio.token", trace.Account)
	require.Equal(t, "transfer", trace.Name)
	require.Equal(t, uint64(99), trace.GlobalSeq)
	require.Equal(t, []byte("payload"), trace.Data)
	require.Len(t, trace.Authorization, 1)
	require.Equal(t, "alice", trace.Authorization[0].Actor)
}
