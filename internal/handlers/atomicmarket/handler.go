// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package atomicmarket

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

const handlerName = "atomicmarket"

// Handler indexes the atomicmarket contract and, for sale-state
// propagation, watches atomicassets offer lifecycle actions; it also
// watches the configured delphioracle account's pairs/datapoints tables
// to keep a symbol-pair price cache warm.
type Handler struct {
	handlers.Base
	args Args

	pairsByID map[uint64]oraclePair
	prices    *priceCache
}

// New constructs the atomicmarket handler.
func New(args Args, bus *notify.Bus) *Handler {
	scope := handlers.Scope{
		Actions: []handlers.Filter{
			{Account: args.AtomicMarketAccount, Name: "announcesale", Deserialize: true},
			{Account: args.AtomicMarketAccount, Name: "cancelsale", Deserialize: true},
			{Account: args.AtomicMarketAccount, Name: "purchasesale", Deserialize: true},
			{Account: args.AtomicMarketAccount, Name: "announceauct", Deserialize: true},
			{Account: args.AtomicMarketAccount, Name: "cancelauct", Deserialize: true},
			{Account: args.AtomicMarketAccount, Name: "auctionbid", Deserialize: true},
			{Account: args.AtomicMarketAccount, Name: "auctclaimbuy", Deserialize: true},
			{Account: args.AtomicMarketAccount, Name: "createbuyo", Deserialize: true},
			{Account: args.AtomicMarketAccount, Name: "cancelbuyo", Deserialize: true},
			{Account: args.AtomicMarketAccount, Name: "fulfillbuyo", Deserialize: true},
			{Account: args.AtomicMarketAccount, Name: "lognewmarket", Deserialize: true},
			// cross-contract: a sale is marked SOLD only once the underlying
			// atomicassets offer backing it resolves to ACCEPTED.
			{Account: args.AtomicAssetsAccount, Name: "acceptoffer", Deserialize: true},
			{Account: args.AtomicAssetsAccount, Name: "declineoffer", Deserialize: true},
			{Account: args.AtomicAssetsAccount, Name: "canceloffer", Deserialize: true},
		},
		Tables: []handlers.Filter{
			{Account: args.AtomicMarketAccount, Name: "sales", Deserialize: true},
			{Account: args.AtomicMarketAccount, Name: "auctions", Deserialize: true},
			{Account: args.AtomicMarketAccount, Name: "buyoffers", Deserialize: true},
			{Account: args.AtomicMarketAccount, Name: "marketplaces", Deserialize: true},
			{Account: args.AtomicMarketAccount, Name: "tokenconfigs", Deserialize: true},
			{Account: args.AtomicMarketAccount, Name: "symbolpairs", Deserialize: true},
		},
	}
	if args.DelphiOracleAccount != "" {
		scope.Tables = append(scope.Tables,
			handlers.Filter{Account: args.DelphiOracleAccount, Name: "pairs", Deserialize: true},
			handlers.Filter{Account: args.DelphiOracleAccount, Name: "datapoints", Deserialize: true},
		)
	}
	return &Handler{
		Base:      handlers.NewBase(handlerName, scope, bus),
		args:      args,
		pairsByID: make(map[uint64]oraclePair),
		prices:    newPriceCache(),
	}
}

// NewFactory returns a handlers.Factory bound to bus.
func NewFactory(bus *notify.Bus) handlers.Factory {
	return func(args handlers.Args) (handlers.Handler, error) {
		market, _ := args["atomicmarket_account"].(string)
		assets, _ := args["atomicassets_account"].(string)
		if market == "" || assets == "" {
			return nil, fmt.Errorf("atomicmarket: missing atomicmarket_account/atomicassets_account argument")
		}
		oracle, _ := args["delphioracle_account"].(string)
		storeLogs, _ := args["store_logs"].(bool)
		return New(Args{
			AtomicMarketAccount: market,
			AtomicAssetsAccount: assets,
			DelphiOracleAccount: oracle,
			StoreLogs:           storeLogs,
		}, bus), nil
	}
}

// chainConfig is the subset of atomicmarket's on-chain singleton "config"
// table this handler persists: the version tag and the maker/taker market
// fee split, fetched once from the chain and stored. Init only logs the
// version; no sale computation reads the fee fields.
type chainConfig struct {
	Version        string  `json:"version"`
	MakerMarketFee float64 `json:"maker_market_fee"`
	TakerMarketFee float64 `json:"taker_market_fee"`
}

// Init satisfies spec §4.F's init(conn) contract: load this handler's
// configuration from the handler_config table, or — on first boot — fetch
// it from the chain's own config table and persist it.
func (h *Handler) Init(ctx context.Context, deps *handlers.Deps) error {
	var cfg chainConfig
	found, err := contractdb.LoadHandlerConfig(ctx, deps.Pool, handlerName, &cfg)
	if err != nil {
		return fmt.Errorf("atomicmarket: load handler config: %w", err)
	}
	if !found {
		cfg, err = fetchChainConfig(ctx, deps.ChainClient, h.args.AtomicMarketAccount)
		if err != nil {
			return fmt.Errorf("atomicmarket: fetch config from chain: %w", err)
		}
		if err := contractdb.SaveHandlerConfig(ctx, deps.Pool, handlerName, cfg); err != nil {
			return fmt.Errorf("atomicmarket: persist handler config: %w", err)
		}
	}
	log.Info("atomicmarket: init", "account", h.args.AtomicMarketAccount, "config_version", cfg.Version)
	return nil
}

// fetchChainConfig reads the single row of account's "config" table.
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

var ownedTables = []string{
	"atomicmarket_logs",
	"atomicmarket_sales",
	"atomicmarket_auctions",
	"atomicmarket_buyoffers",
	"atomicmarket_marketplaces",
	"atomicmarket_tokenconfigs",
	"atomicmarket_symbolpairs",
}

func (h *Handler) DeleteDB(ctx context.Context, deps *handlers.Deps) error {
	for _, table := range ownedTables {
		if _, err := deps.Tx.Query(ctx, fmt.Sprintf(`DELETE FROM %s WHERE contract = $1`, table), h.args.AtomicMarketAccount); err != nil {
			return fmt.Errorf("atomicmarket: delete %s: %w", table, err)
		}
	}
	return nil
}

func (h *Handler) OnBlockStart(ctx context.Context, block chain.Block) error {
	return nil
}

func (h *Handler) OnAction(ctx context.Context, tx *contractdb.Tx, block chain.Block, txID string, trace chain.ActionTrace) error {
	if trace.Account == h.args.AtomicAssetsAccount {
		return h.onOfferResolution(ctx, tx, block, txID, trace)
	}
	switch trace.Name {
	case "announcesale":
		return h.onAnnounceSale(ctx, tx, block, txID, trace)
	case "cancelsale":
		return h.onCancelSale(ctx, tx, block, txID, trace)
	case "purchasesale":
		return h.onPurchaseSale(ctx, tx, block, txID, trace)
	case "announceauct":
		return h.onAnnounceAuction(ctx, tx, block, txID, trace)
	case "cancelauct":
		return h.onCancelAuction(ctx, tx, block, txID, trace)
	case "auctionbid":
		return h.onAuctionBid(ctx, tx, block, txID, trace)
	case "auctclaimbuy":
		return h.onAuctionClaim(ctx, tx, block, txID, trace)
	case "createbuyo":
		return h.onCreateBuyOffer(ctx, tx, block, txID, trace)
	case "cancelbuyo":
		return h.onCancelBuyOffer(ctx, tx, block, txID, trace)
	case "fulfillbuyo":
		return h.onFulfillBuyOffer(ctx, tx, block, txID, trace)
	case "lognewmarket":
		return h.onLogNewMarketplace(ctx, tx, block, txID, trace)
	default:
		return nil
	}
}

func (h *Handler) OnTableChange(ctx context.Context, tx *contractdb.Tx, block chain.Block, delta chain.TableDelta) error {
	if delta.Contract == h.args.DelphiOracleAccount && h.args.DelphiOracleAccount != "" {
		return h.onOracleTableChange(delta)
	}
	switch delta.Table {
	case "sales":
		return h.onSaleDelta(ctx, tx, block, delta)
	case "auctions":
		return h.onAuctionDelta(ctx, tx, block, delta)
	case "buyoffers":
		return h.onBuyOfferDelta(ctx, tx, block, delta)
	case "marketplaces":
		return h.onMarketplaceDelta(ctx, tx, block, delta)
	case "tokenconfigs":
		return h.onTokenConfigDelta(ctx, tx, block, delta)
	case "symbolpairs":
		return h.onSymbolPairDelta(ctx, tx, block, delta)
	default:
		return nil
	}
}

func (h *Handler) onOracleTableChange(delta chain.TableDelta) error {
	data, ok := decodedMap(delta.Decoded)
	if !ok || !delta.Present {
		return nil
	}
	switch delta.Table {
	case "pairs":
		base, _ := data["base_symbol"].(string)
		quote, _ := data["quote_symbol"].(string)
		h.onOraclePairEntry(delta.PrimaryKey, base, quote)
	case "datapoints":
		median, _ := data["median"].(float64)
		h.onOracleDatapoint(decodedUint64(data, "sym_pair_id"), median)
	}
	return nil
}

func (h *Handler) OnBlockComplete(ctx context.Context, tx *contractdb.Tx) error {
	return h.DrainJobs(ctx)
}

func (h *Handler) OnCommit(ctx context.Context) error {
	h.FlushNotifications(ctx)
	return nil
}

func (h *Handler) appendLog(ctx context.Context, tx *contractdb.Tx, relationName string, relationID uint64, name string, data map[string]interface{}, txID string, block chain.Block) error {
	if !h.args.StoreLogs {
		return nil
	}
	return tx.Insert(ctx, handlerName, "atomicmarket_logs", contractdb.Row{
		"contract":         h.args.AtomicMarketAccount,
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
	h.Notify(handlerName, h.args.AtomicMarketAccount, topic, msg)
}
