// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package handlers is the contract handler framework (spec §4.F): a
// handler declares a scope and a fixed set of lifecycle hooks; the state
// receiver drives those hooks per block in the order spec §4.E fixes.
package handlers

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eosio-contract-api/chain-indexer-go/internal/chain"
	"github.com/eosio-contract-api/chain-indexer-go/internal/chainrpc"
	"github.com/eosio-contract-api/chain-indexer-go/internal/contractdb"
	"github.com/eosio-contract-api/chain-indexer-go/internal/jobqueue"
	"github.com/eosio-contract-api/chain-indexer-go/internal/notify"
)

// Handler is the abstract contract spec §4.F names: a static name, a scope,
// and the init/delete/onX lifecycle hooks. Concrete handlers (atomicassets,
// atomicmarket) implement this directly, usually by embedding Base.
type Handler interface {
	Name() string
	Scope() Scope

	Init(ctx context.Context, tx *Deps) error
	DeleteDB(ctx context.Context, tx *Deps) error

	OnBlockStart(ctx context.Context, block chain.Block) error
	OnAction(ctx context.Context, tx *contractdb.Tx, block chain.Block, txID string, trace chain.ActionTrace) error
	OnTableChange(ctx context.Context, tx *contractdb.Tx, block chain.Block, delta chain.TableDelta) error
	OnBlockComplete(ctx context.Context, tx *contractdb.Tx) error
	OnCommit(ctx context.Context) error
}

// Deps bundles the external collaborators Init/DeleteDB may need. Tx is
// only populated when the hook runs inside an open block transaction
// (DeleteDB, during a configuration reload); Init runs before any block has
// been processed, so it gets Pool (to read/write its own handler_config
// row directly, outside any block's Tx) and ChainClient (to fetch initial
// configuration from the chain when no row exists yet) instead.
type Deps struct {
	Tx          *contractdb.Tx
	Pool        *pgxpool.Pool
	ChainClient chainrpc.Client
}

// Base implements the bookkeeping every concrete handler needs — a
// per-block priority job queue (drained only in OnBlockComplete, spec
// §4.E step 6) and a staged-notification buffer (released only in
// OnCommit, spec §4.G) — so concrete handlers only need to implement the
// domain-specific hooks.
type Base struct {
	HandlerName string
	HandlerScope Scope

	jobs   *jobqueue.Queue
	staged *notify.Staged
}

// NewBase wires a Base for name/scope, staging notifications through bus.
func NewBase(name string, scope Scope, bus *notify.Bus) Base {
	return Base{
		HandlerName:  name,
		HandlerScope: scope,
		jobs:         jobqueue.New(),
		staged:       bus.NewStaged(),
	}
}

func (b *Base) Name() string  { return b.HandlerName }
func (b *Base) Scope() Scope  { return b.HandlerScope }

// AddUpdateJob enqueues fn to run during the next OnBlockComplete drain, at
// priority (higher runs first; ties preserve enqueue order — spec
// invariant 4).
func (b *Base) AddUpdateJob(fn func(ctx context.Context) error, priority int, site string) {
	b.jobs.Add(fn, priority, site)
}

// DrainJobs runs every job queued since the last drain, in priority order,
// stopping at the first error (spec §4.E step 6).
func (b *Base) DrainJobs(ctx context.Context) error {
	for b.jobs.Len() > 0 {
		if err := b.jobs.Drain(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Notify stages a notification for release on commit (spec §4.G). Callers
// must only invoke this when the transaction is reversible — backfill
// ingestion of irreversible history stays quiet by design.
func (b *Base) Notify(handler, contract, topic string, msg notify.Message) {
	b.staged.Stage(handler, contract, topic, msg)
}

// FlushNotifications releases every staged notification (spec §4.G
// "flushed in onCommit").
func (b *Base) FlushNotifications(ctx context.Context) {
	b.staged.Flush(ctx)
}
