// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package atomicassets

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/log"

	"github.com/eosio-contract-api/chain-indexer-go/internal/chain"
	"github.com/eosio-contract-api/chain-indexer-go/internal/chainrpc"
	"github.com/eosio-contract-api/chain-indexer-go/internal/contractdb"
	"github.com/eosio-contract-api/chain-indexer-go/internal/handlers"
	"github.com/eosio-contract-api/chain-indexer-go/internal/notify"
)

const handlerName = "atomicassets"

// Handler indexes the atomicassets contract: collections, schemas,
// templates, assets, offers, transfers, and the logs table every mutation
// append-only records to (spec §4.F).
type Handler struct {
	handlers.Base
	args Args
}

// New constructs the atomicassets handler from its argument record and
// wires it to bus for staged notifications.
func New(args Args, bus *notify.Bus) *Handler {
	scope := handlers.Scope{
		Actions: []handlers.Filter{
			{Account: args.AtomicAssetsAccount, Name: "logmint", Deserialize: true},
			{Account: args.AtomicAssetsAccount, Name: "logtransfer", Deserialize: true},
			{Account: args.AtomicAssetsAccount, Name: "createoffer", Deserialize: true},
			{Account: args.AtomicAssetsAccount, Name: "acceptoffer", Deserialize: true},
			{Account: args.AtomicAssetsAccount, Name: "declineoffer", Deserialize: true},
			{Account: args.AtomicAssetsAccount, Name: "canceloffer", Deserialize: true},
			{Account: args.AtomicAssetsAccount, Name: "logburnasset", Deserialize: true},
		},
		Tables: []handlers.Filter{
			{Account: args.AtomicAssetsAccount, Name: "collections", Deserialize: true},
			{Account: args.AtomicAssetsAccount, Name: "schemas", Deserialize: true},
			{Account: args.AtomicAssetsAccount, Name: "templates", Deserialize: true},
			{Account: args.AtomicAssetsAccount, Name: "assets", Deserialize: true},
			{Account: args.AtomicAssetsAccount, Name: "offers", Deserialize: true},
		},
	}
	return &Handler{Base: handlers.NewBase(handlerName, scope, bus), args: args}
}

// NewFactory returns a handlers.Factory bound to bus, suitable for
// handlers.Register during process startup once the notification bus is
// constructed (handler factories need a live Bus, so registration happens
// in cmd/indexer's wiring step rather than an init func here).
func NewFactory(bus *notify.Bus) handlers.Factory {
	return func(args handlers.Args) (handlers.Handler, error) {
		account, _ := args["atomicassets_account"].(string)
		if account == "" {
			return nil, fmt.Errorf("atomicassets: missing atomicassets_account argument")
		}
		storeTransfers, _ := args["store_transfers"].(bool)
		storeLogs, _ := args["store_logs"].(bool)
		return New(Args{AtomicAssetsAccount: account, StoreTransfers: storeTransfers, StoreLogs: storeLogs}, bus), nil
	}
}

// chainConfig is the subset of atomicassets' on-chain singleton "config"
// table this handler needs: the collection schema's version tag, used only
// to log what was fetched. The full row is persisted verbatim, format
// migrations are out of scope (spec.md Non-goals).
type chainConfig struct {
	Version          string          `json:"version"`
	CollectionFormat json.RawMessage `json:"collection_format"`
}

// Init satisfies spec §4.F's init(conn) contract: load this handler's
// configuration from the handler_config table, or — on first boot, when no
// row exists yet — fetch it from the chain's own config table and persist
// it so every later restart finds it already there.
func (h *Handler) Init(ctx context.Context, deps *handlers.Deps) error {
	var cfg chainConfig
	found, err := contractdb.LoadHandlerConfig(ctx, deps.Pool, handlerName, &cfg)
	if err != nil {
		return fmt.Errorf("atomicassets: load handler config: %w", err)
	}
	if !found {
		cfg, err = fetchChainConfig(ctx, deps.ChainClient, h.args.AtomicAssetsAccount)
		if err != nil {
			return fmt.Errorf("atomicassets: fetch config from chain: %w", err)
		}
		if err := contractdb.SaveHandlerConfig(ctx, deps.Pool, handlerName, cfg); err != nil {
			return fmt.Errorf("atomicassets: persist handler config: %w", err)
		}
	}
	log.Info("atomicassets: init", "account", h.args.AtomicAssetsAccount, "config_version", cfg.Version)
	return nil
}

// fetchChainConfig reads the single row of account's "config" table —
// every atomicassets deployment carries exactly one, scoped to itself.
func fetchChainConfig(ctx context.Context, client chainrpc.Client, account string) (chainConfig, error) {
	resp, err := client.GetTableRows(ctx, chainrpc.GetTableRowsRequest{
		Code:  account,
		Scope: account,
		Table: "config",
		Limit: 1,
		JSON:  true,
	})
	if err != nil {
		return chainConfig{}, err
	}
	if len(resp.Rows) == 0 {
		return chainConfig{}, fmt.Errorf("config table empty for %s", account)
	}
	var cfg chainConfig
	if err := json.Unmarshal(resp.Rows[0], &cfg); err != nil {
		return chainConfig{}, fmt.Errorf("decode config row: %w", err)
	}
	return cfg, nil
}

// ownedTables lists every table this handler exclusively writes, in an
// order safe for unconditional deletion (no foreign-key dependents left
// dangling, since none of these tables reference each other by constraint).
var ownedTables = []string{
	"atomicassets_logs",
	"atomicassets_transfers",
	"atomicassets_offers",
	"atomicassets_assets",
	"atomicassets_templates",
	"atomicassets_schemas",
	"atomicassets_collections",
}

func (h *Handler) DeleteDB(ctx context.Context, deps *handlers.Deps) error {
	for _, table := range ownedTables {
		if _, err := deps.Tx.Query(ctx, fmt.Sprintf(`DELETE FROM %s WHERE contract = $1`, table), h.args.AtomicAssetsAccount); err != nil {
			return fmt.Errorf("atomicassets: delete %s: %w", table, err)
		}
	}
	return nil
}

func (h *Handler) OnBlockStart(ctx context.Context, block chain.Block) error {
	return nil
}

func (h *Handler) OnAction(ctx context.Context, tx *contractdb.Tx, block chain.Block, txID string, trace chain.ActionTrace) error {
	switch trace.Name {
	case "logmint":
		return h.onLogMint(ctx, tx, block, txID, trace)
	case "logtransfer":
		return h.onLogTransfer(ctx, tx, block, txID, trace)
	case "createoffer":
		return h.onCreateOffer(ctx, tx, block, txID, trace)
	case "acceptoffer":
		return h.onOfferStateChange(ctx, tx, block, txID, trace, OfferStateAccepted)
	case "declineoffer":
		return h.onOfferStateChange(ctx, tx, block, txID, trace, OfferStateDeclined)
	case "canceloffer":
		return h.onOfferStateChange(ctx, tx, block, txID, trace, OfferStateCanceled)
	case "logburnasset":
		return h.onLogBurnAsset(ctx, tx, block, txID, trace)
	default:
		return nil
	}
}

func (h *Handler) OnTableChange(ctx context.Context, tx *contractdb.Tx, block chain.Block, delta chain.TableDelta) error {
	switch delta.Table {
	case "collections":
		return h.onCollectionDelta(ctx, tx, block, delta)
	case "schemas":
		return h.onSchemaDelta(ctx, tx, block, delta)
	case "templates":
		return h.onTemplateDelta(ctx, tx, block, delta)
	case "assets":
		return h.onAssetDelta(ctx, tx, block, delta)
	case "offers":
		return h.onOfferDelta(ctx, tx, block, delta)
	default:
		return nil
	}
}

func (h *Handler) OnBlockComplete(ctx context.Context, tx *contractdb.Tx) error {
	return h.DrainJobs(ctx)
}

func (h *Handler) OnCommit(ctx context.Context) error {
	h.FlushNotifications(ctx)
	return nil
}

// appendLog inserts one append-only row into the shared logs table (spec
// §6's "append-only logs table"), the same pattern every mutating action
// funnels through before staging its notification.
func (h *Handler) appendLog(ctx context.Context, tx *contractdb.Tx, relationName string, relationID uint64, name string, data map[string]interface{}, txID string, block chain.Block) error {
	return tx.Insert(ctx, handlerName, "atomicassets_logs", contractdb.Row{
		"contract":         h.args.AtomicAssetsAccount,
		"relation_name":    relationName,
		"relation_id":      relationID,
		"name":             name,
		"data":             data,
		"txid":             txID,
		"created_at_block": block.BlockNum,
		"created_at_time":  block.Timestamp,
	}, nil)
}

func decodedMap(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}

func (h *Handler) notifyIfReversible(tx *contractdb.Tx, topic string, msg notify.Message) {
	if !tx.Reversible() {
		return
	}
	h.Notify(handlerName, h.args.AtomicAssetsAccount, topic, msg)
}
