// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadRequiresDatabaseDSN(t *testing.T) {
	fs := FlagSet("test")
	require.NoError(t, fs.Set("state-history-url", "ws://localhost:8080"))

	_, err := Load("", fs)
	require.Error(t, err)
}

func TestLoadAppliesDefaults(t *testing.T) {
	fs := FlagSet("test")
	require.NoError(t, fs.Set("database-dsn", "postgres://localhost/db"))
	require.NoError(t, fs.Set("state-history-url", "ws://localhost:8080"))

	cfg, err := Load("", fs)
	require.NoError(t, err)
	require.Equal(t, "default", cfg.ReaderName)
	require.Equal(t, 4, cfg.DeserializeWorkers)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestLoadOnlyOverlaysExplicitlySetFlags(t *testing.T) {
	fs := FlagSet("test")
	require.NoError(t, fs.Set("database-dsn", "postgres://localhost/db"))
	require.NoError(t, fs.Set("state-history-url", "ws://localhost:8080"))
	require.NoError(t, fs.Set("reader-name", "custom"))

	cfg, err := Load("", fs)
	require.NoError(t, err)
	require.Equal(t, "custom", cfg.ReaderName)
	require.Equal(t, 4, cfg.DeserializeWorkers, "flags left at their zero value must not overlay the default")
}

func TestHandlerArgsCoercion(t *testing.T) {
	args := map[string]interface{}{"account": "atomicassets", "store_logs": true}
	require.Equal(t, "atomicassets", HandlerArgsString(args, "account"))
	require.True(t, HandlerArgsBool(args, "store_logs"))
	require.Equal(t, "", HandlerArgsString(args, "missing"))
}
