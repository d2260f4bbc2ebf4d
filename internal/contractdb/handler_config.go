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

// LoadHandlerConfig reads the persisted configuration for handler into out
// (a pointer to a handler-defined config struct) and reports whether a row
// existed. Handlers call this from Init, per spec §4.F's "configuration is
// read once from chain RPC and persisted" contract: a row only exists once
// this handler has successfully fetched and saved its config at least once.
func LoadHandlerConfig(ctx context.Context, pool *pgxpool.Pool, handler string, out interface{}) (bool, error) {
	var raw []byte
	err := pool.QueryRow(ctx, `SELECT args FROM handler_config WHERE handler = $1`, handler).Scan(&raw)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load handler config %q: %w", handler, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode handler config %q: %w", handler, err)
	}
	return true, nil
}

// SaveHandlerConfig persists args (anything JSON-marshalable) as handler's
// configuration row, replacing whatever was there before.
func SaveHandlerConfig(ctx context.Context, pool *pgxpool.Pool, handler string, args interface{}) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshal handler config %q: %w", handler, err)
	}
	_, err = pool.Exec(ctx,
		`INSERT INTO handler_config (handler, args) VALUES ($1, $2)
		 ON CONFLICT (handler) DO UPDATE SET args = EXCLUDED.args`,
		handler, raw,
	)
	if err != nil {
		return fmt.Errorf("save handler config %q: %w", handler, err)
	}
	return nil
}
