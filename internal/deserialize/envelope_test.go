// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package deserialize

import (
	"testing"

	"github.com/kylelemons/godebug/pretty"
	"github.com/stretchr/testify/require"
)

func TestDecodeBlocksResultV0RejectsWrongVariant(t *testing.T) {
	w := &byteWriter{}
	w.writeVarUint(0) // get_status_result_v0, not handled
	_, err := DecodeBlocksResultV0(w.buf)
	require.Error(t, err)
}

func TestDecodeBlocksResultV0RoundTrips(t *testing.T) {
	w := &byteWriter{}
	w.writeVarUint(variantGetBlocksResultV0)
	w.writeUint32(100) // head.block_num
	w.buf = append(w.buf, make([]byte, 32)...)
	w.writeUint32(90) // last_irreversible.block_num
	w.buf = append(w.buf, make([]byte, 32)...)
	w.writeBool(true) // this_block present
	w.writeUint32(42)
	w.buf = append(w.buf, make([]byte, 32)...)
	w.writeBool(false) // prev_block absent
	w.writeBool(true)  // block present
	w.writeVarUint(3)
	w.buf = append(w.buf, []byte{1, 2, 3}...)
	w.writeBool(false) // traces absent
	w.writeBool(false) // deltas absent

	res, err := DecodeBlocksResultV0(w.buf)
	require.NoError(t, err)

	want := BlocksResultV0{
		Head:                  BlockPosition{BlockNum: 100, BlockID: zeroBlockID},
		LastIrreversibleBlock: BlockPosition{BlockNum: 90, BlockID: zeroBlockID},
		ThisBlock:             BlockPosition{BlockNum: 42, BlockID: zeroBlockID},
		HasThisBlock:          true,
		Block:                 []byte{1, 2, 3},
	}
	if diff := pretty.Compare(want, res); diff != "" {
		t.Fatalf("decoded result diverged from expected (-want +got):\n%s", diff)
	}
}

var zeroBlockID = hexZeros(32)

func hexZeros(n int) string {
	b := make([]byte, n*2)
	for i := range b {
		b[i] = '0'
	}
	return string(b)
}

func TestEncodeBlocksRequestV0DecodesBackDeterministically(t *testing.T) {
	req := EncodeBlocksRequestV0(10, 0xFFFFFFFF, 50, true, true, false)
	r := newByteReader(req)

	variant, err := r.readVarUint()
	require.NoError(t, err)
	require.Equal(t, uint64(variantGetBlocksRequestV0), variant)

	startBlock, err := r.readUint32()
	require.NoError(t, err)
	require.Equal(t, uint32(10), startBlock)
}

func TestEncodeBlocksAckRequestV0(t *testing.T) {
	req := EncodeBlocksAckRequestV0(7)
	r := newByteReader(req)

	variant, err := r.readVarUint()
	require.NoError(t, err)
	require.Equal(t, uint64(variantGetBlocksAckRequestV0), variant)

	n, err := r.readUint32()
	require.NoError(t, err)
	require.Equal(t, uint32(7), n)
}
