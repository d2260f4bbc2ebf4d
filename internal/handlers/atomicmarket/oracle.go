// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package atomicmarket

import (
	"sync"
)

// priceKey identifies one delphioracle-style quote pair.
type priceKey struct {
	base  string
	quote string
}

// priceCache is an in-memory symbol-pair price feed fed by delphioracle's
// datapoints table delta stream (spec.md §6 lists delphioracle_account as a
// handler argument without describing its use; this is the expansion's
// concrete meaning for it). No handler code path reads prices back out of
// it.
type priceCache struct {
	mu     sync.RWMutex
	prices map[priceKey]float64
}

func newPriceCache() *priceCache {
	return &priceCache{prices: make(map[priceKey]float64)}
}

func (c *priceCache) set(base, quote string, price float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[priceKey{base: base, quote: quote}] = price
}

func (c *priceCache) lookup(base, quote string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.prices[priceKey{base: base, quote: quote}]
	return p, ok
}

// onOracleDatapoint updates the cache from one delphioracle "datapoints"
// table row: {sym_pair_id, median, ...}. The (base, quote) pair for a
// sym_pair_id is resolved from the pairs table separately (onOraclePairEntry);
// a datapoint for an unknown pair id is dropped.
func (h *Handler) onOracleDatapoint(symPairID uint64, median float64) {
	pair, ok := h.pairsByID[symPairID]
	if !ok {
		return
	}
	h.prices.set(pair.base, pair.quote, median)
}

// oraclePair is one delphioracle "pairs" table row: which two symbols a
// sym_pair_id's datapoints quote.
type oraclePair struct {
	base  string
	quote string
}

func (h *Handler) onOraclePairEntry(symPairID uint64, base, quote string) {
	h.pairsByID[symPairID] = oraclePair{base: base, quote: quote}
}
