// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package atomicmarket

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPriceCacheUnknownPairMisses(t *testing.T) {
	c := newPriceCache()
	_, ok := c.lookup("wax", "usd")
	require.False(t, ok)
}

func TestOracleDatapointIgnoredForUnknownPair(t *testing.T) {
	h := &Handler{pairsByID: make(map[uint64]oraclePair), prices: newPriceCache()}
	h.onOracleDatapoint(7, 1.23)

	_, ok := h.prices.lookup("wax", "usd")
	require.False(t, ok, "a datapoint for an unregistered sym_pair_id must be dropped")
}

func TestOraclePairThenDatapointPopulatesCache(t *testing.T) {
	h := &Handler{pairsByID: make(map[uint64]oraclePair), prices: newPriceCache()}
	h.onOraclePairEntry(7, "wax", "usd")
	h.onOracleDatapoint(7, 0.0512)

	price, ok := h.prices.lookup("wax", "usd")
	require.True(t, ok)
	require.Equal(t, 0.0512, price)
}
