// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package abi tracks the ABI version active for each contract at each block
// height (spec §4.C) and exposes the decoded, typed representation handlers
// consume instead of a free-form map (spec §9 design notes).
package abi

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/VictoriaMetrics/fastcache"
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/exp/slices"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// ABI is the decoded form of one contract's ABI definition: the set of
// named action and table types a deserializer worker needs to decode
// payloads against. The binary layout parser lives in internal/deserialize;
// this package only tracks which ABI version applies at which height.
type ABI struct {
	Contract string
	Actions  map[string]string // action name -> type name
	Tables   map[string]string // table name -> row type name
	Structs  map[string]Struct
	raw      []byte
}

// Struct is one named ABI struct: an ordered list of (field, type) pairs.
type Struct struct {
	Name   string
	Base   string
	Fields []Field
}

// Field is one field of an ABI struct.
type Field struct {
	Name string
	Type string
}

// New constructs an ABI from its parsed components. raw is retained so it
// can be returned by Raw and persisted alongside the parsed components.
func New(contract string, actions, tables map[string]string, structs map[string]Struct, raw []byte) *ABI {
	return &ABI{
		Contract: contract,
		Actions:  actions,
		Tables:   tables,
		Structs:  structs,
		raw:      raw,
	}
}

// Raw returns the original ABI bytes this value was parsed from.
func (a *ABI) Raw() []byte { return a.raw }

// record is one (contract, block_num) -> abi entry as held in the in-memory
// height index, which mirrors the durable store and exists only to answer
// "which height is in effect" without a disk read on every lookup.
type record struct {
	blockNum uint32
	abi      *ABI
}

// Cache is the per-contract ABI version table described in spec §4.C. It is
// written only from the receiver goroutine (spec §5's single-writer
// discipline), so it needs no internal locking for writes, but Lookup may be
// called concurrently by deserializer workers, so reads take a RWMutex.
//
// Three tiers back it, each exercising one domain dependency named in
// SPEC_FULL.md's DOMAIN STACK:
//   - hotCache: decoded *ABI objects for the most recently looked-up
//     (contract, block_num) pairs (hashicorp/golang-lru).
//   - rawCache: the same serialized record bytes durable holds, kept warm
//     so a hotCache miss doesn't have to go to disk (VictoriaMetrics/fastcache).
//   - durable: an ordered on-disk store of every installed ABI version,
//     keyed so every (contract, height) this process has ever installed
//     survives a restart (cockroachdb/pebble).
//
// byHeight is rehydrated from durable on Open (which also loads every
// durable record into rawCache) and kept in sync by Install; Lookup uses it
// to find which height is in effect, then reads that height's record
// through rawCache, falling through to durable only when rawCache does not
// hold it.
type Cache struct {
	mu       sync.RWMutex
	byHeight map[string][]record // contract -> ascending by blockNum

	hotCache *lru.Cache
	rawCache *fastcache.Cache
	durable  *pebble.DB
}

// Parser decodes raw ABI bytes into an *ABI. Supplied by internal/deserialize
// to avoid a dependency cycle (deserialize depends on abi for the ABI type,
// not the other way around).
type Parser interface {
	ParseABI(contract string, raw []byte) (*ABI, error)
}

// durableRecord is the full content persisted under pebbleKey(contract,
// blockNum): everything needed to reconstruct an *ABI without re-parsing
// its raw bytes, so a restart doesn't need a Parser to rehydrate.
type durableRecord struct {
	Contract string            `json:"contract"`
	Actions  map[string]string `json:"actions"`
	Tables   map[string]string `json:"tables"`
	Structs  map[string]Struct `json:"structs"`
	Raw      []byte            `json:"raw"`
}

func (r durableRecord) toABI() *ABI {
	return New(r.Contract, r.Actions, r.Tables, r.Structs, r.Raw)
}

func newDurableRecord(a *ABI) durableRecord {
	return durableRecord{Contract: a.Contract, Actions: a.Actions, Tables: a.Tables, Structs: a.Structs, Raw: a.raw}
}

// Open opens (creating if absent) the durable ABI store at dir, rehydrates
// the in-memory height index from every record already persisted there, and
// returns a ready Cache. A nil/empty dir uses an in-memory pebble instance,
// which is what tests and single-process demos want — and which starts
// empty every time, by design.
func Open(dir string) (*Cache, error) {
	var db *pebble.DB
	var err error
	if dir == "" {
		db, err = pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	} else {
		db, err = pebble.Open(dir, &pebble.Options{})
	}
	if err != nil {
		return nil, fmt.Errorf("open abi durable store: %w", err)
	}
	hot, err := lru.New(256)
	if err != nil {
		return nil, fmt.Errorf("allocate abi hot cache: %w", err)
	}

	c := &Cache{
		byHeight: make(map[string][]record),
		hotCache: hot,
		rawCache: fastcache.New(32 << 20), // 32MiB of raw ABI bytes
		durable:  db,
	}
	if err := c.rehydrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("rehydrate abi cache: %w", err)
	}
	return c, nil
}

// rehydrate replays every record durable already holds into byHeight and
// rawCache, so a restarted process can still decode actions/tables for a
// contract whose setabi landed in a previous run — without it, every
// restart loses all ABI version history until a fresh setabi streams in
// live.
func (c *Cache) rehydrate() error {
	iter, err := c.durable.NewIter(nil)
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		contract, blockNum, ok := decodePebbleKey(iter.Key())
		if !ok {
			continue
		}
		rec, err := decodeDurableValue(iter.Value())
		if err != nil {
			return fmt.Errorf("decode record for %s@%d: %w", contract, blockNum, err)
		}
		c.byHeight[contract] = append(c.byHeight[contract], record{blockNum: blockNum, abi: rec.toABI()})
		c.rawCache.Set(append([]byte(nil), iter.Key()...), iter.Value())
	}
	return iter.Error()
}

// Close releases the durable store handle.
func (c *Cache) Close() error {
	return c.durable.Close()
}

// pebbleKey encodes (contract, blockNum) so that pebble's natural byte-wise
// key order is ascending by contract then by height.
func pebbleKey(contract string, blockNum uint32) []byte {
	key := make([]byte, 0, len(contract)+1+4)
	key = append(key, []byte(contract)...)
	key = append(key, 0x00)
	var h [4]byte
	binary.BigEndian.PutUint32(h[:], blockNum)
	return append(key, h[:]...)
}

// decodePebbleKey reverses pebbleKey.
func decodePebbleKey(key []byte) (contract string, blockNum uint32, ok bool) {
	if len(key) < 5 {
		return "", 0, false
	}
	sep := len(key) - 4 - 1
	if key[sep] != 0x00 {
		return "", 0, false
	}
	return string(key[:sep]), binary.BigEndian.Uint32(key[sep+1:]), true
}

func decodeDurableValue(raw []byte) (durableRecord, error) {
	var rec durableRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return durableRecord{}, err
	}
	return rec, nil
}

// Install records that abi took effect for contract at blockNum. Spec §4.C
// requires this to happen before any subsequent action/delta for the same
// contract at the same or later block is decoded; the receiver enforces
// that ordering by calling Install synchronously while processing the
// setabi action trace, before moving on to the next trace.
func (c *Cache) Install(contract string, blockNum uint32, parsed *ABI) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	recs := c.byHeight[contract]
	idx, found := slices.BinarySearchFunc(recs, blockNum, func(r record, target uint32) int {
		switch {
		case r.blockNum < target:
			return -1
		case r.blockNum > target:
			return 1
		default:
			return 0
		}
	})
	rec := record{blockNum: blockNum, abi: parsed}
	if found {
		recs[idx] = rec // re-installing at the same height replaces, doesn't duplicate
	} else {
		recs = append(recs, record{})
		copy(recs[idx+1:], recs[idx:])
		recs[idx] = rec
	}
	c.byHeight[contract] = recs

	key := pebbleKey(contract, blockNum)
	value, err := json.Marshal(newDurableRecord(parsed))
	if err != nil {
		return fmt.Errorf("marshal abi record for %s@%d: %w", contract, blockNum, err)
	}

	c.hotCache.Add(cacheKey(contract, blockNum), parsed)
	c.rawCache.Set(key, value)
	return c.durable.Set(key, value, pebble.Sync)
}

// Lookup returns the ABI effective for contract at targetBlock: the entry
// with the largest block_num <= targetBlock. ok is false if no ABI has ever
// been installed for contract at or before targetBlock.
//
// It checks hotCache first, then confirms the height the in-memory index
// says is effective through rawCache, and only on a rawCache miss reads
// durable directly. Open loads every durable record into rawCache, so a
// restart alone does not send lookups to durable.
func (c *Cache) Lookup(contract string, targetBlock uint32) (*ABI, bool) {
	hotKey := cacheKey(contract, targetBlock)
	if v, ok := c.hotCache.Get(hotKey); ok {
		return v.(*ABI), true
	}

	c.mu.RLock()
	recs := c.byHeight[contract]
	c.mu.RUnlock()

	idx, _ := slices.BinarySearchFunc(recs, targetBlock, func(r record, target uint32) int {
		switch {
		case r.blockNum < target:
			return -1
		case r.blockNum > target:
			return 1
		default:
			return 0
		}
	})
	// BinarySearchFunc returns the first index whose element is >= target;
	// the effective record is the one just before it (largest <= target).
	if idx < len(recs) && recs[idx].blockNum == targetBlock {
		idx++
	}
	if idx == 0 {
		return nil, false
	}
	eff := recs[idx-1]
	key := pebbleKey(contract, eff.blockNum)

	if raw, found := c.rawCache.HasGet(nil, key); found {
		if rec, err := decodeDurableValue(raw); err == nil {
			abi := rec.toABI()
			c.hotCache.Add(hotKey, abi)
			return abi, true
		}
	}

	if raw, closer, err := c.durable.Get(key); err == nil {
		defer closer.Close()
		if rec, decErr := decodeDurableValue(raw); decErr == nil {
			abi := rec.toABI()
			c.rawCache.Set(key, append([]byte(nil), raw...))
			c.hotCache.Add(hotKey, abi)
			return abi, true
		}
	}

	// Caches and durable store all missed or failed to decode; fall back
	// to the in-memory copy so a transient cache error never hides an ABI
	// this process knows it installed.
	c.hotCache.Add(hotKey, eff.abi)
	return eff.abi, true
}

func cacheKey(contract string, blockNum uint32) string {
	return fmt.Sprintf("%s@%d", contract, blockNum)
}
