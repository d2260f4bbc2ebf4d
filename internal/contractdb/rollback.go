// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package contractdb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// rollbackEntry is one buffered inverse operation, recorded in-memory while
// a Tx is open and flushed to the rollback-history table just before
// commit (spec invariant 1: same transaction as the mutation it shadows).
type rollbackEntry struct {
	blockNum  uint32
	handler   string
	table     string
	operation string // "insert" | "update" | "delete", the inverse of what actually happened
	condition Where
	values    Row
}

type rollbackRecorder struct {
	entries []rollbackEntry
}

func newRollbackRecorder() *rollbackRecorder { return &rollbackRecorder{} }

func (r *rollbackRecorder) record(blockNum uint32, handler, table, operation string, condition Where, values Row) {
	r.entries = append(r.entries, rollbackEntry{
		blockNum: blockNum, handler: handler, table: table,
		operation: operation, condition: condition, values: values,
	})
}

func (r *rollbackRecorder) flush(ctx context.Context, tx pgx.Tx) error {
	for _, e := range r.entries {
		condJSON, err := whereToJSON(e.condition)
		if err != nil {
			return fmt.Errorf("marshal rollback condition: %w", err)
		}
		valJSON, err := json.Marshal(e.values)
		if err != nil {
			return fmt.Errorf("marshal rollback values: %w", err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO rollback_history (block_num, handler, operation, "table", condition, values)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			e.blockNum, e.handler, e.operation, e.table, condJSON, valJSON,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func whereToJSON(w Where) ([]byte, error) {
	m := make(map[string]interface{}, len(w))
	for _, c := range w {
		m[c.Column] = c.Value
	}
	return json.Marshal(m)
}

// ReplayRow is one rollback-history row read back for fork replay.
type ReplayRow struct {
	GlobalSeq int64
	BlockNum  uint32
	Handler   string
	Operation string
	Table     string
	Condition map[string]interface{}
	Values    Row
}

// FetchForReplay returns every rollback-history row with block_num >= from,
// in (block_num desc, global_seq desc) order, exactly the order spec §4.E's
// fork-handling algorithm applies inverses in.
func FetchForReplay(ctx context.Context, pool *pgxpool.Pool, from uint32) ([]ReplayRow, error) {
	rows, err := pool.Query(ctx,
		`SELECT global_seq, block_num, handler, operation, "table", condition, values
		 FROM rollback_history WHERE block_num >= $1
		 ORDER BY block_num DESC, global_seq DESC`, from)
	if err != nil {
		return nil, fmt.Errorf("fetch rollback rows: %w", err)
	}
	defer rows.Close()

	var out []ReplayRow
	for rows.Next() {
		var r ReplayRow
		var condRaw, valRaw []byte
		if err := rows.Scan(&r.GlobalSeq, &r.BlockNum, &r.Handler, &r.Operation, &r.Table, &condRaw, &valRaw); err != nil {
			return nil, fmt.Errorf("scan rollback row: %w", err)
		}
		if len(condRaw) > 0 {
			if err := json.Unmarshal(condRaw, &r.Condition); err != nil {
				return nil, fmt.Errorf("unmarshal rollback condition: %w", err)
			}
		}
		if len(valRaw) > 0 {
			if err := json.Unmarshal(valRaw, &r.Values); err != nil {
				return nil, fmt.Errorf("unmarshal rollback values: %w", err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ApplyInverse applies one replayed row's inverse operation through tx,
// bypassing rollback recording (the replay transaction is itself above the
// fork point and its own inverse would never be needed: the row is deleted
// right after being applied, per spec §4.E).
func ApplyInverse(ctx context.Context, tx *Tx, r ReplayRow) error {
	where := mapToWhere(r.Condition)
	switch r.Operation {
	case "insert":
		cols := make([]string, 0, len(r.Values))
		for c := range r.Values {
			cols = append(cols, c)
		}
		return rawInsert(ctx, tx, r.Table, r.Values, cols)
	case "update":
		return rawUpdate(ctx, tx, r.Table, r.Values, where)
	case "delete":
		return rawDelete(ctx, tx, r.Table, where)
	default:
		return fmt.Errorf("contractdb: unknown rollback operation %q", r.Operation)
	}
}

func mapToWhere(m map[string]interface{}) Where {
	w := make(Where, 0, len(m))
	for k, v := range m {
		w = append(w, Condition{Column: k, Value: v})
	}
	return w
}

// rawInsert/rawUpdate/rawDelete perform the bare SQL operation without
// touching the rollback recorder: fork replay operates above the
// irreversible watermark by construction, so these rows are deleted from
// rollback_history immediately after being applied and must not spawn new
// rollback entries of their own.
func rawInsert(ctx context.Context, tx *Tx, table string, row Row, cols []string) error {
	if err := tx.checkAlive("replay insert"); err != nil {
		return err
	}
	args := make([]interface{}, 0, len(cols))
	placeholders := make([]string, 0, len(cols))
	for _, c := range cols {
		args = append(args, row[c])
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, joinIdents(cols), joinStrings(placeholders))
	if _, err := tx.pgTx.Exec(ctx, sql, args...); err != nil {
		return tx.fail("replay insert "+table, err)
	}
	return nil
}

func rawUpdate(ctx context.Context, tx *Tx, table string, row Row, where Where) error {
	if err := tx.checkAlive("replay update"); err != nil {
		return err
	}
	args := make([]interface{}, 0, len(row)+len(where))
	sets := make([]string, 0, len(row))
	for c, v := range row {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", c, len(args)))
	}
	conds := make([]string, 0, len(where))
	for _, c := range where {
		args = append(args, c.Value)
		conds = append(conds, fmt.Sprintf("%s = $%d", c.Column, len(args)))
	}
	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s", table, joinStrings(sets), joinAnd(conds))
	if _, err := tx.pgTx.Exec(ctx, sql, args...); err != nil {
		return tx.fail("replay update "+table, err)
	}
	return nil
}

func rawDelete(ctx context.Context, tx *Tx, table string, where Where) error {
	if err := tx.checkAlive("replay delete"); err != nil {
		return err
	}
	args := make([]interface{}, 0, len(where))
	conds := make([]string, 0, len(where))
	for _, c := range where {
		args = append(args, c.Value)
		conds = append(conds, fmt.Sprintf("%s = $%d", c.Column, len(args)))
	}
	sql := fmt.Sprintf("DELETE FROM %s WHERE %s", table, joinAnd(conds))
	if _, err := tx.pgTx.Exec(ctx, sql, args...); err != nil {
		return tx.fail("replay delete "+table, err)
	}
	return nil
}

// DeleteReplayed removes the rollback-history rows that have just been
// applied, keyed by their global_seq, in the same transaction as the
// inverse operations themselves.
func DeleteReplayed(ctx context.Context, tx *Tx, globalSeqs []int64) error {
	if err := tx.checkAlive("delete replayed rollback rows"); err != nil {
		return err
	}
	if len(globalSeqs) == 0 {
		return nil
	}
	if _, err := tx.pgTx.Exec(ctx, `DELETE FROM rollback_history WHERE global_seq = ANY($1)`, globalSeqs); err != nil {
		return tx.fail("delete replayed rollback rows", err)
	}
	return nil
}

// Prune removes rollback-history rows at or below the new irreversible
// watermark, as the same transaction that advances it (spec §4.E step 8).
func Prune(ctx context.Context, tx *Tx, upTo uint32) error {
	if err := tx.checkAlive("prune rollback history"); err != nil {
		return err
	}
	if _, err := tx.pgTx.Exec(ctx, `DELETE FROM rollback_history WHERE block_num <= $1`, upTo); err != nil {
		return tx.fail("prune rollback history", err)
	}
	return nil
}
