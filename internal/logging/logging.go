// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package logging configures the process-wide go-ethereum/log root logger:
// a colorized terminal handler for interactive runs and, when a log
// directory is configured, a second handler writing logfmt lines through a
// rotating file backed by gopkg.in/natefinch/lumberjack.v2.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-colorable"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls where and how verbosely the root logger writes.
type Config struct {
	Level string // trace, debug, info, warn, error, crit
	Dir   string // rotating log file directory; empty disables file logging
}

// Setup installs cfg's handlers as the go-ethereum/log root handler. Both
// loggers from Component and the package-level log.Info/log.Warn/...
// functions most packages in this module call write through it.
func Setup(cfg Config) error {
	lvl, err := log.LvlFromString(orDefault(cfg.Level, "info"))
	if err != nil {
		return fmt.Errorf("logging: bad level %q: %w", cfg.Level, err)
	}

	handlers := []log.Handler{
		log.LvlFilterHandler(lvl, log.StreamHandler(colorable.NewColorableStderr(), log.TerminalFormat(true))),
	}

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return fmt.Errorf("logging: mkdir %s: %w", cfg.Dir, err)
		}
		rotator := &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, "chain-indexer.log"),
			MaxSize:    100, // megabytes
			MaxBackups: 10,
			MaxAge:     28, // days
			Compress:   true,
		}
		handlers = append(handlers, log.LvlFilterHandler(lvl, log.StreamHandler(rotator, log.LogfmtFormat())))
	}

	log.Root().SetHandler(log.MultiHandler(handlers...))
	return nil
}

// Component returns a logger tagged component=name (cmd/indexer uses it;
// the other packages call the root log functions directly).
func Component(name string) log.Logger {
	return log.New("component", name)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
