// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestVerifyContinuityAcceptsFirstBlockUnconditionally(t *testing.T) {
	v := NewContinuityValidator(0, common.Hash{})
	err := v.VerifyContinuity(Block{BlockNum: 100, BlockID: common.HexToHash("0x1")})
	require.NoError(t, err)
}

func TestVerifyContinuityAcceptsMatchingChain(t *testing.T) {
	v := NewContinuityValidator(100, common.HexToHash("0x1"))
	err := v.VerifyContinuity(Block{BlockNum: 101, BlockID: common.HexToHash("0x2"), Previous: common.HexToHash("0x1")})
	require.NoError(t, err)
}

func TestVerifyContinuityRejectsMismatchedPrevious(t *testing.T) {
	v := NewContinuityValidator(100, common.HexToHash("0x1"))
	err := v.VerifyContinuity(Block{BlockNum: 101, BlockID: common.HexToHash("0x2"), Previous: common.HexToHash("0xdead")})
	require.True(t, errors.Is(err, ErrDiscontinuous))
}

func TestVerifyContinuityToleratesGapsInScope(t *testing.T) {
	v := NewContinuityValidator(100, common.HexToHash("0x1"))
	err := v.VerifyContinuity(Block{BlockNum: 150, BlockID: common.HexToHash("0x2"), Previous: common.HexToHash("0xirrelevant")})
	require.NoError(t, err, "a block skipping ahead (no relevant scope in between) is not a fork")
}

func TestVerifyContinuityRejectsBlockAtOrBelowWatermark(t *testing.T) {
	v := NewContinuityValidator(100, common.HexToHash("0x1"))
	err := v.VerifyContinuity(Block{BlockNum: 100, BlockID: common.HexToHash("0x1")})
	require.True(t, errors.Is(err, ErrDiscontinuous))
}

func TestResetRewindsWatermark(t *testing.T) {
	v := NewContinuityValidator(200, common.HexToHash("0x2"))
	v.Reset(100, common.HexToHash("0x1"))

	err := v.VerifyContinuity(Block{BlockNum: 101, BlockID: common.HexToHash("0x3"), Previous: common.HexToHash("0x1")})
	require.NoError(t, err)
}
