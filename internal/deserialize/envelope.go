// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package deserialize

import (
	"encoding/hex"
	"fmt"
)

// The state-history control protocol is itself ABI-encoded, the same
// LEB128/struct binary format as every contract payload this package
// decodes; it is not JSON. Outbound session requests are one variant of
// state_request (get_blocks_request_v0 = 1, get_blocks_ack_request_v0 = 2);
// the only inbound variant this indexer consumes is state_result's
// get_blocks_result_v0 (= 1). get_status_request_v0/get_status_result_v0
// (variant 0 on both sides) are never sent; this reader always resumes by
// issuing get_blocks_request_v0 directly.
const (
	variantGetBlocksRequestV0    = 1
	variantGetBlocksAckRequestV0 = 2
	variantGetBlocksResultV0     = 1
)

// byteWriter appends the LEB128/fixed-width primitives the control protocol
// and every contract payload share, the write-side counterpart to
// byteReader.
type byteWriter struct {
	buf []byte
}

func (w *byteWriter) writeByte(b byte) { w.buf = append(w.buf, b) }

func (w *byteWriter) writeVarUint(v uint64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		w.buf = append(w.buf, b)
		if v == 0 {
			return
		}
	}
}

func (w *byteWriter) writeUint32(v uint32) {
	w.buf = append(w.buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func (w *byteWriter) writeBool(v bool) {
	if v {
		w.writeByte(1)
	} else {
		w.writeByte(0)
	}
}

// EncodeBlocksRequestV0 builds the binary get_blocks_request_v0 control
// message: spec §4.A's subscription request, sent once per (re)connect and
// again whenever the receiver acks a batch (the ack-driven backpressure
// window, not a fixed size). have_positions is always sent empty — this
// reader never resumes from a fork snapshot the node already remembers, it
// always names startBlockNum explicitly.
func EncodeBlocksRequestV0(startBlockNum, endBlockNum, maxMessagesInFlight uint32, fetchBlock, fetchTraces, fetchDeltas bool) []byte {
	w := &byteWriter{}
	w.writeVarUint(variantGetBlocksRequestV0)
	w.writeUint32(startBlockNum)
	w.writeUint32(endBlockNum)
	w.writeUint32(maxMessagesInFlight)
	w.writeVarUint(0) // have_positions: block_position[], always empty
	w.writeBool(false) // irreversible_only
	w.writeBool(fetchBlock)
	w.writeBool(fetchTraces)
	w.writeBool(fetchDeltas)
	return w.buf
}

// EncodeBlocksAckRequestV0 builds the binary get_blocks_ack_request_v0
// control message telling the node this reader is ready for n more
// messages.
func EncodeBlocksAckRequestV0(numMessages uint32) []byte {
	w := &byteWriter{}
	w.writeVarUint(variantGetBlocksAckRequestV0)
	w.writeUint32(numMessages)
	return w.buf
}

// BlockPosition identifies a block by height and id, the wire shape nested
// throughout get_blocks_result_v0.
type BlockPosition struct {
	BlockNum uint32
	BlockID  string // hex-encoded checksum256
}

// BlocksResultV0 is the decoded get_blocks_result_v0 control message:
// head/last_irreversible are always present; this_block/prev_block are
// absent only at the tail of a live chain's most recent block; the three
// payload fields are each independently optional depending on what the
// request's fetch_block/fetch_traces/fetch_deltas flags asked for.
type BlocksResultV0 struct {
	Head                  BlockPosition
	LastIrreversibleBlock BlockPosition
	ThisBlock             BlockPosition
	PrevBlock             BlockPosition
	HasThisBlock          bool
	HasPrevBlock          bool
	Block                 []byte
	Traces                []byte
	Deltas                []byte
}

// DecodeBlocksResultV0 decodes a get_blocks_result_v0 control message off
// the wire, the same byteReader cursor every contract payload in this
// package is decoded through.
func DecodeBlocksResultV0(payload []byte) (BlocksResultV0, error) {
	r := newByteReader(payload)

	variant, err := r.readVarUint()
	if err != nil {
		return BlocksResultV0{}, fmt.Errorf("envelope variant: %w", err)
	}
	if variant != variantGetBlocksResultV0 {
		return BlocksResultV0{}, fmt.Errorf("unexpected state_result variant %d", variant)
	}

	var out BlocksResultV0
	if out.Head, err = readBlockPosition(r); err != nil {
		return BlocksResultV0{}, fmt.Errorf("head: %w", err)
	}
	if out.LastIrreversibleBlock, err = readBlockPosition(r); err != nil {
		return BlocksResultV0{}, fmt.Errorf("last_irreversible: %w", err)
	}
	if out.ThisBlock, out.HasThisBlock, err = readOptionalBlockPosition(r); err != nil {
		return BlocksResultV0{}, fmt.Errorf("this_block: %w", err)
	}
	if out.PrevBlock, out.HasPrevBlock, err = readOptionalBlockPosition(r); err != nil {
		return BlocksResultV0{}, fmt.Errorf("prev_block: %w", err)
	}
	if out.Block, err = readOptionalBytes(r); err != nil {
		return BlocksResultV0{}, fmt.Errorf("block: %w", err)
	}
	if out.Traces, err = readOptionalBytes(r); err != nil {
		return BlocksResultV0{}, fmt.Errorf("traces: %w", err)
	}
	if out.Deltas, err = readOptionalBytes(r); err != nil {
		return BlocksResultV0{}, fmt.Errorf("deltas: %w", err)
	}
	return out, nil
}

func readBlockPosition(r *byteReader) (BlockPosition, error) {
	blockNum, err := r.readUint32()
	if err != nil {
		return BlockPosition{}, fmt.Errorf("block_num: %w", err)
	}
	id, err := r.readBytes(32)
	if err != nil {
		return BlockPosition{}, fmt.Errorf("block_id: %w", err)
	}
	return BlockPosition{BlockNum: blockNum, BlockID: hex.EncodeToString(id)}, nil
}

// readOptionalBlockPosition reads an ABI `optional<block_position>`: a
// presence byte, then the value only if present.
func readOptionalBlockPosition(r *byteReader) (BlockPosition, bool, error) {
	present, err := r.readBool()
	if err != nil {
		return BlockPosition{}, false, fmt.Errorf("presence flag: %w", err)
	}
	if !present {
		return BlockPosition{}, false, nil
	}
	pos, err := readBlockPosition(r)
	return pos, true, err
}

// readOptionalBytes reads an ABI `optional<bytes>`: a presence byte, then a
// varuint-length-prefixed byte string only if present.
func readOptionalBytes(r *byteReader) ([]byte, error) {
	present, err := r.readBool()
	if err != nil {
		return nil, fmt.Errorf("presence flag: %w", err)
	}
	if !present {
		return nil, nil
	}
	n, err := r.readVarUint()
	if err != nil {
		return nil, fmt.Errorf("length: %w", err)
	}
	return r.readBytes(int(n))
}
