// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package contractdb

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReaderState is the bookmark spec.md §6's "default start block = last
// committed + 1" needs: the block a given reader last committed through,
// recorded so a restart doesn't have to re-derive it by scanning domain
// tables (which don't all carry a block_num column) or fall back to the
// chain head and silently skip whatever gap opened up since the last
// commit.
type ReaderState struct {
	ReaderName string
	BlockNum   uint32
	BlockID    string
}

// SaveReaderState upserts readerName's bookmark for this Tx's block, in the
// same transaction as the block's other mutations — a crash between
// writing domain rows and updating the bookmark is impossible. It bypasses
// rollback-history recording: the bookmark isn't domain state a fork
// replay should be reverting, it just tracks how far ingestion has gotten.
func (t *Tx) SaveReaderState(ctx context.Context, readerName string, blockNum uint32, blockID string) error {
	if err := t.checkAlive("save reader state"); err != nil {
		return err
	}
	_, err := t.pgTx.Exec(ctx,
		`INSERT INTO reader_state (reader_name, block_num, block_id) VALUES ($1, $2, $3)
		 ON CONFLICT (reader_name) DO UPDATE SET block_num = EXCLUDED.block_num, block_id = EXCLUDED.block_id`,
		readerName, blockNum, blockID,
	)
	if err != nil {
		return t.fail("save reader state", err)
	}
	return nil
}

// LoadReaderState reads readerName's bookmark outside any block's Tx — it's
// consulted once at boot, before a Tx for the first block exists. ok is
// false if this reader has never committed a block.
func LoadReaderState(ctx context.Context, pool *pgxpool.Pool, readerName string) (ReaderState, bool, error) {
	var st ReaderState
	st.ReaderName = readerName
	err := pool.QueryRow(ctx,
		`SELECT block_num, block_id FROM reader_state WHERE reader_name = $1`, readerName,
	).Scan(&st.BlockNum, &st.BlockID)
	if err == pgx.ErrNoRows {
		return ReaderState{}, false, nil
	}
	if err != nil {
		return ReaderState{}, false, fmt.Errorf("load reader state %q: %w", readerName, err)
	}
	return st, true, nil
}
