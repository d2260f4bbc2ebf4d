// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package chain holds the domain types the core ingestion pipeline passes
// between the reader, the ABI cache and the state receiver: blocks,
// transactions, action traces and table deltas. Nothing here talks to the
// network or the database — it is the shared vocabulary of §3 of the spec.
package chain

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Block is one delivered unit from the State-History stream, fully decoded:
// its traces are already flattened into execution order and its deltas
// already decoded against the ABI active at BlockNum.
type Block struct {
	BlockNum                 uint32
	BlockID                  common.Hash
	Previous                 common.Hash
	LastIrreversibleBlockNum uint32
	Timestamp                time.Time
	Transactions             []Transaction
	Deltas                   []TableDelta
}

// Transaction is one transaction within a Block, its traces already in
// depth-first execution order.
type Transaction struct {
	TxID   common.Hash
	Traces []ActionTrace
}

// Authorization is one (actor, permission) pair authorizing an action.
type Authorization struct {
	Actor      string
	Permission string
}

// ActionTrace is one flattened, depth-first action execution record.
type ActionTrace struct {
	GlobalSeq      uint64
	Account        string
	Name           string
	Authorization  []Authorization
	Data           []byte
	Decoded        interface{}
	ParentGlobalSeq uint64 // 0 for a root trace
}

// TableDelta is one row-level change to a contract table.
type TableDelta struct {
	Contract string
	Scope    string
	Table    string
	PrimaryKey uint64
	Payer    string
	Present  bool // false => delete
	Data     []byte
	Decoded  interface{}
}

func (b Block) String() string {
	return fmt.Sprintf("block %d (%s)", b.BlockNum, b.BlockID.Hex())
}

// Reversible reports whether b still sits inside the fork window relative to
// the supplied last-irreversible height.
func (b Block) Reversible(lastIrreversible uint32) bool {
	return b.BlockNum > lastIrreversible
}
