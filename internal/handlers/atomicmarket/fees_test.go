// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package atomicmarket

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestCalculateSaleProceeds(t *testing.T) {
	total := uint256.NewInt(100000)
	proceeds := CalculateSaleProceeds(total, 5000, 2000)

	require.Equal(t, uint256.NewInt(5000), proceeds.CollectionAuthor)
	require.Equal(t, uint256.NewInt(1000), proceeds.MakerMarketplace)
	require.Equal(t, uint256.NewInt(1000), proceeds.TakerMarketplace)
	require.Equal(t, uint256.NewInt(93000), proceeds.Seller)

	sum := new(uint256.Int).Add(proceeds.Seller, proceeds.CollectionAuthor)
	sum.Add(sum, proceeds.MakerMarketplace)
	sum.Add(sum, proceeds.TakerMarketplace)
	require.Equal(t, total, sum)
}

func TestCalculateSaleProceedsNoFees(t *testing.T) {
	total := uint256.NewInt(42000)
	proceeds := CalculateSaleProceeds(total, 0, 0)

	require.Equal(t, total, proceeds.Seller)
	require.True(t, proceeds.CollectionAuthor.IsZero())
	require.True(t, proceeds.MakerMarketplace.IsZero())
	require.True(t, proceeds.TakerMarketplace.IsZero())
}
