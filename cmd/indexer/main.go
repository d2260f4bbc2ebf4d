// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command indexer is the CLI entrypoint: it loads the configuration
// document, wires the deserializer pool, ABI cache, contract-DB pool,
// notification bus and configured handler list into a state receiver, and
// runs it until an interrupt or an unrecoverable error.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/olekukonko/tablewriter"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	gethlog "github.com/ethereum/go-ethereum/log"

	"github.com/eosio-contract-api/chain-indexer-go/internal/abi"
	"github.com/eosio-contract-api/chain-indexer-go/internal/chainrpc"
	"github.com/eosio-contract-api/chain-indexer-go/internal/config"
	"github.com/eosio-contract-api/chain-indexer-go/internal/contractdb"
	"github.com/eosio-contract-api/chain-indexer-go/internal/deserialize"
	"github.com/eosio-contract-api/chain-indexer-go/internal/handlers"
	"github.com/eosio-contract-api/chain-indexer-go/internal/handlers/atomicassets"
	"github.com/eosio-contract-api/chain-indexer-go/internal/handlers/atomicmarket"
	"github.com/eosio-contract-api/chain-indexer-go/internal/logging"
	"github.com/eosio-contract-api/chain-indexer-go/internal/metrics"
	"github.com/eosio-contract-api/chain-indexer-go/internal/notify"
	"github.com/eosio-contract-api/chain-indexer-go/internal/reader"
	"github.com/eosio-contract-api/chain-indexer-go/internal/statereceiver"
)

// overridable lists the flags that, when set on the command line, take
// precedence over the configuration document and the environment — see
// loadConfig.
var overridable = []string{
	"chain-endpoint", "state-history-url", "database-dsn", "broker-dsn",
	"chain-name", "reader-name", "start-block", "deserialize-workers",
	"abi-store-dir", "log-dir", "log-level", "metrics-addr",
}

func main() {
	app := &cli.App{
		Name:  "indexer",
		Usage: "stream a chain's actions and table deltas into relational state",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to the configuration document"},
			&cli.StringFlag{Name: "chain-endpoint", Usage: "chain RPC endpoint"},
			&cli.StringFlag{Name: "state-history-url", Usage: "state-history websocket URL"},
			&cli.StringFlag{Name: "database-dsn", Usage: "postgres connection string"},
			&cli.StringFlag{Name: "broker-dsn", Usage: "redis connection string"},
			&cli.StringFlag{Name: "chain-name", Usage: "chain name tag used in notification channel names"},
			&cli.StringFlag{Name: "reader-name", Usage: "reader name tag used in notification channel names"},
			&cli.Uint64Flag{Name: "start-block", Usage: "block to resume ingestion from (0 = last committed + 1)"},
			&cli.IntFlag{Name: "deserialize-workers", Usage: "deserializer pool worker count"},
			&cli.StringFlag{Name: "abi-store-dir", Usage: "on-disk ABI store directory (empty = in-memory)"},
			&cli.StringFlag{Name: "log-dir", Usage: "rotating log file directory (empty = stderr only)"},
			&cli.StringFlag{Name: "log-level", Usage: "log level: trace, debug, info, warn, error, crit"},
			&cli.StringFlag{Name: "metrics-addr", Usage: "Prometheus /metrics listen address"},
		},
		Action: runCLI,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCLI(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	if err := logging.Setup(logging.Config{Level: cfg.LogLevel, Dir: cfg.LogDir}); err != nil {
		return err
	}
	log := logging.Component("main")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go waitForSignal(cancel, log)

	if err := run(ctx, cfg, log); err != nil && ctx.Err() == nil {
		log.Crit("indexer exited with error", "err", err)
		return err
	}
	return nil
}

// loadConfig bridges urfave/cli/v2's already-parsed flags into
// config.Load's spf13/pflag + spf13/viper resolution: only flags the user
// actually set on the command line are marked changed, so an unset CLI
// flag never shadows a value from the configuration document or the
// environment (config.Load's overlayFlags relies on exactly that).
func loadConfig(c *cli.Context) (config.Config, error) {
	fs := config.FlagSet("indexer")
	for _, name := range overridable {
		if !c.IsSet(name) {
			continue
		}
		if err := fs.Set(name, c.String(name)); err != nil {
			return config.Config{}, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return config.Load(c.String("config"), fs)
}

func waitForSignal(cancel context.CancelFunc, log gethlog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutting down", "signal", sig.String())
	cancel()
}

func run(ctx context.Context, cfg config.Config, log gethlog.Logger) error {
	pool, err := pgxpool.New(ctx, cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	abiCache, err := abi.Open(cfg.ABIStoreDir)
	if err != nil {
		return fmt.Errorf("open abi cache: %w", err)
	}
	defer abiCache.Close()

	deserPool := deserialize.NewPool(ctx, cfg.DeserializeWorkers)
	defer deserPool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.BrokerDSN})
	defer redisClient.Close()
	bus := notify.New(redisClient, cfg.ChainName, cfg.ReaderName)

	handlers.Register("atomicassets", atomicassets.NewFactory(bus))
	handlers.Register("atomicmarket", atomicmarket.NewFactory(bus))

	handlerList, err := buildHandlers(cfg)
	if err != nil {
		return err
	}
	printStartupSummary(cfg, handlerList)

	chainClient, err := chainrpc.NewClient(ctx, cfg.ChainEndpoint)
	if err != nil {
		return fmt.Errorf("connect chain rpc: %w", err)
	}
	defer chainClient.Close()

	deps := &handlers.Deps{Pool: pool, ChainClient: chainClient}
	for _, h := range handlerList {
		if err := h.Init(ctx, deps); err != nil {
			return fmt.Errorf("init handler %s: %w", h.Name(), err)
		}
	}

	rcv := statereceiver.New(pool, abiCache, deserPool, cfg.ReaderName, handlerList)

	startBlock, err := resolveStartBlock(ctx, pool, cfg, chainClient)
	if err != nil {
		return fmt.Errorf("resolve start block: %w", err)
	}

	rd := reader.New(cfg.StateHistoryURL, reader.Config{
		FetchBlock:  true,
		FetchTraces: true,
		FetchDeltas: true,
	})
	defer rd.Close()

	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
				log.Error("metrics server", "err", err)
			}
		}()
	}

	log.Info("starting ingestion", "start_block", startBlock, "handlers", len(handlerList))
	return rcv.Run(ctx, rd, startBlock)
}

// resolveStartBlock honors an explicit cfg.StartBlock override; otherwise it
// reads this reader's ReaderState bookmark and resumes just after the last
// block it committed, matching spec.md §6's "default = last committed + 1".
// Only a reader that has never committed anything (a fresh database, or a
// reader name used for the first time) falls back to the chain head.
func resolveStartBlock(ctx context.Context, pool *pgxpool.Pool, cfg config.Config, client chainrpc.Client) (uint32, error) {
	if cfg.StartBlock != 0 {
		return cfg.StartBlock, nil
	}

	state, ok, err := contractdb.LoadReaderState(ctx, pool, cfg.ReaderName)
	if err != nil {
		return 0, fmt.Errorf("load reader state: %w", err)
	}
	if ok {
		return state.BlockNum + 1, nil
	}

	info, err := client.GetBlock(ctx, "head")
	if err != nil {
		return 0, err
	}
	return info.BlockNum + 1, nil
}

func buildHandlers(cfg config.Config) ([]handlers.Handler, error) {
	list := make([]handlers.Handler, 0, len(cfg.Handlers))
	for _, hc := range cfg.Handlers {
		h, err := handlers.New(hc.Name, hc.Args)
		if err != nil {
			return nil, fmt.Errorf("build handler %q: %w", hc.Name, err)
		}
		list = append(list, h)
	}
	return list, nil
}

// printStartupSummary renders the resolved handler list and its merged
// scope as a table, the way an operator wants to see what this process is
// about to subscribe to before the stream starts flowing.
func printStartupSummary(cfg config.Config, handlerList []handlers.Handler) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Handler", "Actions", "Tables"})
	for _, h := range handlerList {
		scope := h.Scope()
		table.Append([]string{
			h.Name(),
			fmt.Sprintf("%d", len(scope.Actions)),
			fmt.Sprintf("%d", len(scope.Tables)),
		})
	}
	fmt.Printf("reader=%s chain=%s\n", cfg.ReaderName, cfg.ChainName)
	table.Render()
}
