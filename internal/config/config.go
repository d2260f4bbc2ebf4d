// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config loads the one configuration document spec.md §6 names:
// chain endpoint, state-history socket URL, database DSN, message-broker
// DSN, reader name, start block and a handler list with per-handler
// argument records. Values come from a YAML/JSON file read by
// spf13/viper, overridable by CLI flags bound through spf13/pflag and
// urfave/cli/v2, with loose per-handler argument maps coerced on demand
// with spf13/cast.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// HandlerConfig is one entry of the configuration document's handler list:
// a name naming a registered factory and its loose argument record.
type HandlerConfig struct {
	Name string                 `mapstructure:"name"`
	Args map[string]interface{} `mapstructure:"args"`
}

// Config is the fully-resolved configuration document.
type Config struct {
	ChainEndpoint    string          `mapstructure:"chain_endpoint"`
	StateHistoryURL  string          `mapstructure:"state_history_url"`
	DatabaseDSN      string          `mapstructure:"database_dsn"`
	BrokerDSN        string          `mapstructure:"broker_dsn"`
	ChainName        string          `mapstructure:"chain_name"`
	ReaderName       string          `mapstructure:"reader_name"`
	StartBlock       uint32          `mapstructure:"start_block"`
	DeserializeWorkers int           `mapstructure:"deserialize_workers"`
	ABIStoreDir      string          `mapstructure:"abi_store_dir"`
	LogDir           string          `mapstructure:"log_dir"`
	LogLevel         string          `mapstructure:"log_level"`
	MetricsAddr      string          `mapstructure:"metrics_addr"`
	Handlers         []HandlerConfig `mapstructure:"handlers"`
}

// FlagSet declares every override flag cmd/indexer exposes, bound onto fs
// so both pflag-driven parsing and urfave/cli/v2's flag model can share it
// (cli.StringFlag et al. wrap the same pflag.FlagSet convention this
// codebase's CLI layer uses elsewhere).
func FlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "path to the configuration document")
	fs.String("chain-endpoint", "", "chain RPC endpoint")
	fs.String("state-history-url", "", "state-history websocket URL")
	fs.String("database-dsn", "", "postgres connection string")
	fs.String("broker-dsn", "", "redis connection string")
	fs.String("chain-name", "", "chain name tag used in notification channel names")
	fs.String("reader-name", "", "reader name tag used in notification channel names")
	fs.Uint32("start-block", 0, "block to resume ingestion from (0 = last committed + 1)")
	fs.Int("deserialize-workers", 0, "deserializer pool worker count")
	fs.String("abi-store-dir", "", "on-disk ABI store directory (empty = in-memory)")
	fs.String("log-dir", "", "rotating log file directory (empty = stderr only)")
	fs.String("log-level", "", "log level: trace, debug, info, warn, error, crit")
	fs.String("metrics-addr", "", "Prometheus /metrics listen address")
	return fs
}

// Load reads the configuration document at path (if non-empty), applies
// environment variable overrides (prefix EOSCA_, e.g. EOSCA_DATABASE_DSN),
// overlays fs's explicitly-set flags, and returns the resolved Config.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("eosca")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for _, key := range flagToKey {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("config: bind env %s: %w", key, err)
		}
	}

	v.SetDefault("reader_name", "default")
	v.SetDefault("deserialize_workers", 4)
	v.SetDefault("log_level", "info")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	if fs != nil {
		overlayFlags(v, fs)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if cfg.DatabaseDSN == "" {
		return Config{}, fmt.Errorf("config: database_dsn is required")
	}
	if cfg.StateHistoryURL == "" {
		return Config{}, fmt.Errorf("config: state_history_url is required")
	}
	return cfg, nil
}

var flagToKey = map[string]string{
	"chain-endpoint":      "chain_endpoint",
	"state-history-url":   "state_history_url",
	"database-dsn":        "database_dsn",
	"broker-dsn":          "broker_dsn",
	"chain-name":          "chain_name",
	"reader-name":         "reader_name",
	"start-block":         "start_block",
	"deserialize-workers": "deserialize_workers",
	"abi-store-dir":       "abi_store_dir",
	"log-dir":             "log_dir",
	"log-level":           "log_level",
	"metrics-addr":        "metrics_addr",
}

// overlayFlags binds only the flags the caller actually set, so an
// unset CLI flag never clobbers a value already loaded from file or
// environment.
func overlayFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.Visit(func(f *pflag.Flag) {
		key, ok := flagToKey[f.Name]
		if !ok {
			return
		}
		v.Set(key, f.Value.String())
	})
}

// HandlerArgsString reads a string argument out of a handler's loose
// argument record, coercing non-string values with spf13/cast the way the
// rest of this package coerces configuration values.
func HandlerArgsString(args map[string]interface{}, key string) string {
	return cast.ToString(args[key])
}

// HandlerArgsBool reads a bool argument out of a handler's loose argument
// record.
func HandlerArgsBool(args map[string]interface{}, key string) bool {
	return cast.ToBool(args[key])
}
