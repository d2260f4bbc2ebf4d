// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package statereceiver is the heart of the pipeline (spec §4.E): it owns
// the fork window and the merged handler scope, opens one contractdb.Tx
// per block, routes traces and deltas to handlers by scope match, drains
// each handler's priority job queue, and commits — or, on a reported fork,
// replays rollback history back to the fork point before resuming.
package statereceiver

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eosio-contract-api/chain-indexer-go/internal/abi"
	"github.com/eosio-contract-api/chain-indexer-go/internal/chain"
	"github.com/eosio-contract-api/chain-indexer-go/internal/contractdb"
	"github.com/eosio-contract-api/chain-indexer-go/internal/deserialize"
	"github.com/eosio-contract-api/chain-indexer-go/internal/handlers"
	"github.com/eosio-contract-api/chain-indexer-go/internal/reader"
)

// Receiver drives the per-block algorithm spec §4.E describes.
type Receiver struct {
	pool      *pgxpool.Pool
	abiCache  *abi.Cache
	deserPool *deserialize.Pool

	readerName  string
	handlerList []handlers.Handler
	scope       handlers.Scope

	lastIrreversible uint32
	validator        *chain.ContinuityValidator
}

// New builds a Receiver from its collaborators and the resolved handler
// list (already constructed via handlers.New per spec §6's configuration
// document). readerName keys the ReaderState bookmark ProcessBlock commits
// alongside each block, so a restart of this same reader resumes from
// exactly where it left off.
func New(pool *pgxpool.Pool, abiCache *abi.Cache, deserPool *deserialize.Pool, readerName string, handlerList []handlers.Handler) *Receiver {
	scopes := make([]handlers.Scope, 0, len(handlerList))
	for _, h := range handlerList {
		scopes = append(scopes, h.Scope())
	}
	return &Receiver{
		pool:        pool,
		abiCache:    abiCache,
		deserPool:   deserPool,
		readerName:  readerName,
		handlerList: handlerList,
		scope:       handlers.Merged(scopes...),
		validator:   chain.NewContinuityValidator(0, common.Hash{}),
	}
}

// Run consumes deliveries from rd until ctx is canceled, resolving forks by
// reconnecting the reader at the reported fork height.
func (rcv *Receiver) Run(ctx context.Context, rd reader.Reader, startBlock uint32) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		forkedTo, err := rcv.drain(ctx, rd, startBlock)
		if err != nil {
			return err
		}
		startBlock = forkedTo
	}
}

// drain consumes one reader session's deliveries, returning the block
// number to resume from: either the session ran to completion normally
// (the caller's ctx was canceled) or a fork was detected and replayed, in
// which case the reader session is torn down and restarted at the fork
// height instead of trusting the already-open connection's stream order.
func (rcv *Receiver) drain(ctx context.Context, rd reader.Reader, startBlock uint32) (uint32, error) {
	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	deliveries, errCh := rd.Run(sessionCtx, startBlock)
	for d := range deliveries {
		forkedTo, err := rcv.handleDelivery(ctx, d)
		if err != nil {
			return 0, fmt.Errorf("statereceiver: processing block %d: %w", d.ThisBlock.BlockNum, err)
		}
		if forkedTo != 0 {
			return forkedTo, nil
		}
		startBlock = d.ThisBlock.BlockNum + 1
		rd.Ack(1)
	}

	select {
	case err := <-errCh:
		if err != nil && ctx.Err() == nil {
			return 0, fmt.Errorf("statereceiver: reader: %w", err)
		}
	default:
	}
	return startBlock, ctx.Err()
}

// handleDelivery processes one delivered block, detecting discontinuity
// before committing anything. A non-zero returned block number means a
// fork was found and replayed; the caller must resume ingestion there.
func (rcv *Receiver) handleDelivery(ctx context.Context, d reader.Delivery) (uint32, error) {
	if err := rcv.validator.VerifyContinuity(chain.Block{
		BlockNum: d.ThisBlock.BlockNum,
		BlockID:  hashOf(d.ThisBlock.BlockID),
		Previous: hashOf(d.PrevBlock.BlockID),
	}); err != nil {
		log.Warn("statereceiver: fork detected", "at", d.ThisBlock.BlockNum, "err", err)
		if err := rcv.replayFork(ctx, d.ThisBlock.BlockNum); err != nil {
			return 0, fmt.Errorf("replay fork at %d: %w", d.ThisBlock.BlockNum, err)
		}
		rcv.validator.Reset(d.ThisBlock.BlockNum-1, hashOf(d.PrevBlock.BlockID))
		return d.ThisBlock.BlockNum, nil
	}

	block, err := rcv.assembleBlock(ctx, d)
	if err != nil {
		return 0, err
	}
	if err := rcv.ProcessBlock(ctx, block); err != nil {
		return 0, err
	}
	return 0, nil
}

// ProcessBlock runs spec §4.E's eight-step per-block algorithm.
func (rcv *Receiver) ProcessBlock(ctx context.Context, block chain.Block) error {
	tx, err := contractdb.Begin(ctx, rcv.pool, block.BlockNum, rcv.lastIrreversible)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := rcv.runBlock(ctx, tx, block); err != nil {
		if abortErr := tx.Abort(ctx); abortErr != nil {
			log.Error("statereceiver: abort after failure also failed", "err", abortErr)
		}
		return err
	}

	if err := tx.SaveReaderState(ctx, rcv.readerName, block.BlockNum, block.BlockID.Hex()); err != nil {
		_ = tx.Abort(ctx)
		return fmt.Errorf("save reader state: %w", err)
	}

	rcv.lastIrreversible = block.LastIrreversibleBlockNum
	if err := contractdb.Prune(ctx, tx, rcv.lastIrreversible); err != nil {
		_ = tx.Abort(ctx)
		return fmt.Errorf("prune rollback history: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	for _, h := range rcv.handlerList {
		if err := h.OnCommit(ctx); err != nil {
			log.Error("statereceiver: OnCommit failed", "handler", h.Name(), "err", err)
		}
	}
	return nil
}

func (rcv *Receiver) runBlock(ctx context.Context, tx *contractdb.Tx, block chain.Block) error {
	for _, h := range rcv.handlerList {
		if err := h.OnBlockStart(ctx, block); err != nil {
			return fmt.Errorf("handler %s OnBlockStart: %w", h.Name(), err)
		}
	}

	for _, transaction := range block.Transactions {
		txid := transaction.TxID.Hex()
		for _, trace := range transaction.Traces {
			if _, matched := rcv.scope.MatchAction(trace.Account, trace.Name); !matched {
				continue
			}
			for _, h := range rcv.handlerList {
				if _, ok := h.Scope().MatchAction(trace.Account, trace.Name); !ok {
					continue
				}
				if err := h.OnAction(ctx, tx, block, txid, trace); err != nil {
					return fmt.Errorf("handler %s OnAction(%s:%s): %w", h.Name(), trace.Account, trace.Name, err)
				}
			}
		}
	}

	for _, delta := range block.Deltas {
		if _, matched := rcv.scope.MatchTable(delta.Contract, delta.Table); !matched {
			continue
		}
		for _, h := range rcv.handlerList {
			if _, ok := h.Scope().MatchTable(delta.Contract, delta.Table); !ok {
				continue
			}
			if err := h.OnTableChange(ctx, tx, block, delta); err != nil {
				return fmt.Errorf("handler %s OnTableChange(%s:%s): %w", h.Name(), delta.Contract, delta.Table, err)
			}
		}
	}

	for _, h := range rcv.handlerList {
		if err := h.OnBlockComplete(ctx, tx); err != nil {
			return fmt.Errorf("handler %s OnBlockComplete: %w", h.Name(), err)
		}
	}
	return nil
}

// replayFork applies every rollback row with block_num >= at, in
// (block_num desc, global_seq desc) order, deleting each as it is applied,
// restoring the database to its state at the end of block at-1 (spec
// invariant 3).
func (rcv *Receiver) replayFork(ctx context.Context, at uint32) error {
	rows, err := contractdb.FetchForReplay(ctx, rcv.pool, at)
	if err != nil {
		return fmt.Errorf("fetch rollback rows: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	tx, err := contractdb.Begin(ctx, rcv.pool, at-1, rcv.lastIrreversible)
	if err != nil {
		return fmt.Errorf("begin replay tx: %w", err)
	}

	seqs := make([]int64, 0, len(rows))
	for _, r := range rows {
		if err := contractdb.ApplyInverse(ctx, tx, r); err != nil {
			_ = tx.Abort(ctx)
			return fmt.Errorf("apply inverse (global_seq=%d): %w", r.GlobalSeq, err)
		}
		seqs = append(seqs, r.GlobalSeq)
	}
	if err := contractdb.DeleteReplayed(ctx, tx, seqs); err != nil {
		_ = tx.Abort(ctx)
		return fmt.Errorf("delete replayed rows: %w", err)
	}
	return tx.Commit(ctx)
}

func hashOf(s string) common.Hash {
	if s == "" {
		return common.Hash{}
	}
	return common.HexToHash(s)
}
