// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package contractdb

import "fmt"

// DBError wraps any failure surfaced by a Tx operation. Per spec §4.D, once
// a Tx has produced a DBError it is poisoned: every subsequent operation
// fails immediately without touching the database.
type DBError struct {
	Op  string
	Err error
}

func (e *DBError) Error() string { return fmt.Sprintf("contractdb: %s: %v", e.Op, e.Err) }
func (e *DBError) Unwrap() error { return e.Err }
