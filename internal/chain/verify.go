// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ErrDiscontinuous is returned by VerifyContinuity when a delivered block's
// Previous field does not chain to the last delivered block's BlockID. The
// caller (the reader) turns this into a Fork event rather than propagating
// it as a hard failure.
var ErrDiscontinuous = errors.New("block does not chain to predecessor")

// ContinuityValidator checks that a newly delivered block chains to the
// last one accepted by the pipeline. It holds no database state; it is pure
// bookkeeping over the two most recent block headers, mirroring the
// syntactic-verify-before-insert shape of a block validator that checks a
// header against its parent before the block is allowed to extend the chain.
type ContinuityValidator struct {
	lastBlockNum uint32
	lastBlockID  common.Hash
	haveLast     bool
}

// NewContinuityValidator returns a validator primed at the block the
// pipeline last committed (or the zero value before the first block).
func NewContinuityValidator(lastBlockNum uint32, lastBlockID common.Hash) *ContinuityValidator {
	return &ContinuityValidator{
		lastBlockNum: lastBlockNum,
		lastBlockID:  lastBlockID,
		haveLast:     lastBlockID != common.Hash{},
	}
}

// VerifyContinuity checks b.Previous against the last accepted block id. A
// gap (b.BlockNum != lastBlockNum+1) is tolerated — batches may legitimately
// skip blocks that contain no relevant scope — but a mismatched Previous on
// a block that does claim to extend the chain is reported as
// ErrDiscontinuous so the reader can raise Fork{at: lastBlockNum}.
func (v *ContinuityValidator) VerifyContinuity(b Block) error {
	if !v.haveLast {
		v.accept(b)
		return nil
	}
	if b.BlockNum <= v.lastBlockNum {
		// A block at or below our watermark arriving again is itself the
		// signature of a fork; let the caller decide how to resume.
		return fmt.Errorf("%w: block %d at or below watermark %d", ErrDiscontinuous, b.BlockNum, v.lastBlockNum)
	}
	if b.BlockNum == v.lastBlockNum+1 && b.Previous != v.lastBlockID {
		return fmt.Errorf("%w: block %d previous %s != last delivered %s", ErrDiscontinuous, b.BlockNum, b.Previous.Hex(), v.lastBlockID.Hex())
	}
	v.accept(b)
	return nil
}

func (v *ContinuityValidator) accept(b Block) {
	v.lastBlockNum = b.BlockNum
	v.lastBlockID = b.BlockID
	v.haveLast = true
}

// Reset rewinds the validator to height h, discarding any memory of blocks
// above it. Called by the reader after it resumes from a Fork event.
func (v *ContinuityValidator) Reset(blockNum uint32, blockID common.Hash) {
	v.lastBlockNum = blockNum
	v.lastBlockID = blockID
	v.haveLast = blockID != common.Hash{}
}
