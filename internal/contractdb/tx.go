// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package contractdb wraps one relational-database transaction per block
// (spec §4.D): insert/update/delete/replace/query, automatic rollback-
// history capture while the block is inside the fork window, and poison-on-
// failure semantics so a DBError on one operation makes every later
// operation on the same Tx fail without touching the database.
package contractdb

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Row is a single table row as a set of column -> value pairs. Handlers
// build these directly; no struct-tag reflection is involved, mirroring
// how spec §4.D describes insert/update/delete/replace as taking raw
// column maps rather than typed rows (the typed view handlers work with
// lives one layer up, in internal/handlers).
type Row map[string]interface{}

// Where is an ordered list of column = value equality conditions ANDed
// together. Kept as a slice, not a map, so condition order is stable for
// the rollback-history JSON it gets serialized into.
type Where []Condition

// Condition is one column = value equality test.
type Condition struct {
	Column string
	Value  interface{}
}

// Tx wraps one pgx.Tx for one block. It is only ever handed to a handler
// hook as a parameter — per spec §5, handlers must never cache it across a
// suspension — and it is dead after Commit or Abort.
type Tx struct {
	pgTx             pgx.Tx
	blockNum         uint32
	lastIrreversible uint32
	reversible       bool
	rollback         *rollbackRecorder
	poisoned         error
	dead             bool
}

// Begin opens a new Tx against pool for blockNum, computing Reversible per
// spec §3's fork-window definition.
func Begin(ctx context.Context, pool *pgxpool.Pool, blockNum, lastIrreversible uint32) (*Tx, error) {
	pgTx, err := pool.Begin(ctx)
	if err != nil {
		return nil, &DBError{Op: "begin", Err: err}
	}
	return &Tx{
		pgTx:             pgTx,
		blockNum:         blockNum,
		lastIrreversible: lastIrreversible,
		reversible:       blockNum > lastIrreversible,
		rollback:         newRollbackRecorder(),
	}, nil
}

// Reversible reports spec §3's reversibility flag for this Tx's block.
func (t *Tx) Reversible() bool { return t.reversible }

// BlockNum returns the block this Tx belongs to.
func (t *Tx) BlockNum() uint32 { return t.blockNum }

func (t *Tx) fail(op string, err error) error {
	dbErr := &DBError{Op: op, Err: err}
	t.poisoned = dbErr
	return dbErr
}

func (t *Tx) checkAlive(op string) error {
	if t.dead {
		return fmt.Errorf("contractdb: %s on a %s Tx", op, "dead")
	}
	if t.poisoned != nil {
		return t.poisoned
	}
	return nil
}

// Insert adds row to table, keyed by primaryKeys (the subset of row's
// columns identifying it). While reversible, the inverse — a delete stub
// keyed by the same primary key — is recorded in the same transaction.
func (t *Tx) Insert(ctx context.Context, handler, table string, row Row, primaryKeys []string) error {
	if err := t.checkAlive("insert"); err != nil {
		return err
	}
	cols := make([]string, 0, len(row))
	args := make([]interface{}, 0, len(row))
	placeholders := make([]string, 0, len(row))
	for col, val := range row {
		cols = append(cols, col)
		args = append(args, val)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, joinIdents(cols), joinStrings(placeholders))
	if _, err := t.pgTx.Exec(ctx, sql, args...); err != nil {
		return t.fail("insert "+table, err)
	}

	if t.reversible {
		pk := primaryKeyCondition(row, primaryKeys)
		t.rollback.record(t.blockNum, handler, table, "delete", pk, nil)
	}
	return nil
}

// Update sets columns named in set on the rows matching where. The prior
// values of every row about to change are read first (inside this same
// transaction) so the inverse update can be recorded before the mutation
// is applied.
func (t *Tx) Update(ctx context.Context, handler, table string, set Row, where Where) error {
	if err := t.checkAlive("update"); err != nil {
		return err
	}
	if t.reversible {
		prior, err := t.selectMatching(ctx, table, where)
		if err != nil {
			return t.fail("update "+table+" (read prior)", err)
		}
		for _, row := range prior {
			t.rollback.record(t.blockNum, handler, table, "update", where, row)
		}
	}

	sets := make([]string, 0, len(set))
	args := make([]interface{}, 0, len(set)+len(where))
	for col, val := range set {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	conds := make([]string, 0, len(where))
	for _, c := range where {
		args = append(args, c.Value)
		conds = append(conds, fmt.Sprintf("%s = $%d", c.Column, len(args)))
	}
	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s", table, joinStrings(sets), joinAnd(conds))
	if _, err := t.pgTx.Exec(ctx, sql, args...); err != nil {
		return t.fail("update "+table, err)
	}
	return nil
}

// Delete removes rows matching where, recording their prior values as
// inverse inserts while reversible.
func (t *Tx) Delete(ctx context.Context, handler, table string, where Where) error {
	if err := t.checkAlive("delete"); err != nil {
		return err
	}
	if t.reversible {
		prior, err := t.selectMatching(ctx, table, where)
		if err != nil {
			return t.fail("delete "+table+" (read prior)", err)
		}
		for _, row := range prior {
			t.rollback.record(t.blockNum, handler, table, "insert", nil, row)
		}
	}

	args := make([]interface{}, 0, len(where))
	conds := make([]string, 0, len(where))
	for _, c := range where {
		args = append(args, c.Value)
		conds = append(conds, fmt.Sprintf("%s = $%d", c.Column, len(args)))
	}
	sql := fmt.Sprintf("DELETE FROM %s WHERE %s", table, joinAnd(conds))
	if _, err := t.pgTx.Exec(ctx, sql, args...); err != nil {
		return t.fail("delete "+table, err)
	}
	return nil
}

// Replace is an upsert: insert row, or if primaryKeys already exist,
// update every other column of row in place. It is expressed as a single
// INSERT .. ON CONFLICT DO UPDATE. When reversible it reads the prior row
// first: if one exists the rollback records an update back to it, otherwise
// a delete stub.
func (t *Tx) Replace(ctx context.Context, handler, table string, row Row, primaryKeys []string) error {
	if err := t.checkAlive("replace"); err != nil {
		return err
	}
	var prior []Row
	if t.reversible {
		var err error
		prior, err = t.selectMatching(ctx, table, primaryKeyCondition(row, primaryKeys))
		if err != nil {
			return t.fail("replace "+table+" (read prior)", err)
		}
	}

	cols := make([]string, 0, len(row))
	args := make([]interface{}, 0, len(row))
	placeholders := make([]string, 0, len(row))
	updates := make([]string, 0, len(row))
	for col, val := range row {
		cols = append(cols, col)
		args = append(args, val)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		if !contains(primaryKeys, col) {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		}
	}
	sql := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		table, joinIdents(cols), joinStrings(placeholders), joinIdents(primaryKeys), joinStrings(updates),
	)
	if _, err := t.pgTx.Exec(ctx, sql, args...); err != nil {
		return t.fail("replace "+table, err)
	}

	if t.reversible {
		pk := primaryKeyCondition(row, primaryKeys)
		if len(prior) == 0 {
			t.rollback.record(t.blockNum, handler, table, "delete", pk, nil)
		} else {
			t.rollback.record(t.blockNum, handler, table, "update", pk, prior[0])
		}
	}
	return nil
}

// Query runs a read-only statement inside the same transaction, so a
// handler always sees its own uncommitted writes.
func (t *Tx) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	if err := t.checkAlive("query"); err != nil {
		return nil, err
	}
	rows, err := t.pgTx.Query(ctx, sql, args...)
	if err != nil {
		return nil, t.fail("query", err)
	}
	return rows, nil
}

func (t *Tx) selectMatching(ctx context.Context, table string, where Where) ([]Row, error) {
	args := make([]interface{}, 0, len(where))
	conds := make([]string, 0, len(where))
	for _, c := range where {
		args = append(args, c.Value)
		conds = append(conds, fmt.Sprintf("%s = $%d", c.Column, len(args)))
	}
	sql := fmt.Sprintf("SELECT * FROM %s WHERE %s", table, joinAnd(conds))
	rows, err := t.pgTx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []Row
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(Row, len(fields))
		for i, f := range fields {
			row[string(f.Name)] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Commit flushes the buffered rollback-history rows in the same underlying
// transaction as the mutations they shadow (spec invariant 1), then
// commits and kills the Tx.
func (t *Tx) Commit(ctx context.Context) error {
	if err := t.checkAlive("commit"); err != nil {
		return err
	}
	if err := t.rollback.flush(ctx, t.pgTx); err != nil {
		return t.fail("flush rollback history", err)
	}
	if err := t.pgTx.Commit(ctx); err != nil {
		return t.fail("commit", err)
	}
	t.dead = true
	return nil
}

// Abort rolls back the underlying transaction without committing.
func (t *Tx) Abort(ctx context.Context) error {
	if t.dead {
		return nil
	}
	t.dead = true
	if err := t.pgTx.Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
		return &DBError{Op: "abort", Err: err}
	}
	return nil
}

func primaryKeyCondition(row Row, primaryKeys []string) Where {
	where := make(Where, 0, len(primaryKeys))
	for _, k := range primaryKeys {
		where = append(where, Condition{Column: k, Value: row[k]})
	}
	return where
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
