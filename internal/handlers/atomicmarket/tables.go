// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package atomicmarket

import (
	"context"

	"github.com/eosio-contract-api/chain-indexer-go/internal/chain"
	"github.com/eosio-contract-api/chain-indexer-go/internal/contractdb"
	"github.com/eosio-contract-api/chain-indexer-go/internal/handlers"
	"github.com/eosio-contract-api/chain-indexer-go/internal/notify"
)

// onSaleDelta mirrors the sales table. A present row is upserted verbatim,
// including its on-chain WAITING/LISTED state. A vanished row is assumed
// canceled by default; when the disappearance is actually an acceptance,
// onOfferResolution's PriorityActionUpdateSale job — enqueued from the
// acceptoffer trace that ran earlier in the same block — overrides that
// default to SOLD once this PriorityTableSales job has already run.
func (h *Handler) onSaleDelta(ctx context.Context, tx *contractdb.Tx, block chain.Block, delta chain.TableDelta) error {
	saleID := delta.PrimaryKey

	if !delta.Present {
		h.AddUpdateJob(func(ctx context.Context) error {
			return tx.Update(ctx, handlerName, "atomicmarket_sales",
				contractdb.Row{"state": int(SaleStateCanceled)},
				contractdb.Where{
					{Column: "contract", Value: h.args.AtomicMarketAccount},
					{Column: "sale_id", Value: saleID},
				})
		}, handlers.PriorityTableSales, "atomicmarket.sales-removed")
		return nil
	}

	data, ok := decodedMap(delta.Decoded)
	if !ok {
		return nil
	}
	seller := decodedName(data, "seller")
	offerID := decodedUint64(data, "offer_id")
	state, _ := data["state"].(uint64)
	listingPrice, _ := data["listing_price"].(int64)
	settlementSymbol, _ := data["settlement_symbol"].(string)

	h.AddUpdateJob(func(ctx context.Context) error {
		return tx.Replace(ctx, handlerName, "atomicmarket_sales", contractdb.Row{
			"contract":          h.args.AtomicMarketAccount,
			"sale_id":           saleID,
			"seller":            seller,
			"offer_id":          offerID,
			"listing_price":     listingPrice,
			"settlement_symbol": settlementSymbol,
			"state":             int(state),
			"updated_at_block":  block.BlockNum,
		}, []string{"contract", "sale_id"})
	}, handlers.PriorityTableSales, "atomicmarket.sales-upsert")

	h.notifyIfReversible(tx, "sales", notify.Message{
		Action: "update",
		Data:   map[string]interface{}{"sale_id": saleID, "offer_id": offerID, "state": state},
		Block:  notify.BlockRef{BlockNum: block.BlockNum, BlockID: block.BlockID.Hex()},
	})
	return nil
}

// onAuctionDelta mirrors the auctions table the same way onSaleDelta
// mirrors sales: a removed row defaults to CANCELED, and auctclaimbuy's
// logAndNotify-only action relies on the auction already having been moved
// to SOLD by its own delta before removal (auctions, unlike sales, carry
// their terminal state on-chain rather than via an offer).
func (h *Handler) onAuctionDelta(ctx context.Context, tx *contractdb.Tx, block chain.Block, delta chain.TableDelta) error {
	auctionID := delta.PrimaryKey

	if !delta.Present {
		h.AddUpdateJob(func(ctx context.Context) error {
			return tx.Update(ctx, handlerName, "atomicmarket_auctions",
				contractdb.Row{"state": int(AuctionStateCanceled)},
				contractdb.Where{
					{Column: "contract", Value: h.args.AtomicMarketAccount},
					{Column: "auction_id", Value: auctionID},
				})
		}, handlers.PriorityTableSales, "atomicmarket.auctions-removed")
		return nil
	}

	data, ok := decodedMap(delta.Decoded)
	if !ok {
		return nil
	}
	seller := decodedName(data, "seller")
	bidder := decodedName(data, "bidder")
	state, _ := data["state"].(uint64)
	currentBid, _ := data["current_bid"].(int64)
	endTime, _ := data["end_time"].(uint64)

	h.AddUpdateJob(func(ctx context.Context) error {
		return tx.Replace(ctx, handlerName, "atomicmarket_auctions", contractdb.Row{
			"contract":         h.args.AtomicMarketAccount,
			"auction_id":       auctionID,
			"seller":           seller,
			"bidder":           bidder,
			"current_bid":      currentBid,
			"end_time":         endTime,
			"state":            int(state),
			"updated_at_block": block.BlockNum,
		}, []string{"contract", "auction_id"})
	}, handlers.PriorityTableSales, "atomicmarket.auctions-upsert")

	h.notifyIfReversible(tx, "auctions", notify.Message{
		Action: "update",
		Data:   map[string]interface{}{"auction_id": auctionID, "bidder": bidder, "current_bid": currentBid, "state": state},
		Block:  notify.BlockRef{BlockNum: block.BlockNum, BlockID: block.BlockID.Hex()},
	})
	return nil
}

// onBuyOfferDelta mirrors the buyoffers table, keyed off its own present
// row the way onAssetDelta does for atomicassets: buy offers don't carry a
// linked atomicassets offer the way sales do, so there is no analogous
// cross-contract override job here.
func (h *Handler) onBuyOfferDelta(ctx context.Context, tx *contractdb.Tx, block chain.Block, delta chain.TableDelta) error {
	buyofferID := delta.PrimaryKey

	if !delta.Present {
		return tx.Delete(ctx, handlerName, "atomicmarket_buyoffers", contractdb.Where{
			{Column: "contract", Value: h.args.AtomicMarketAccount},
			{Column: "buyoffer_id", Value: buyofferID},
		})
	}

	data, ok := decodedMap(delta.Decoded)
	if !ok {
		return nil
	}
	buyer := decodedName(data, "buyer")
	recipient := decodedName(data, "recipient")
	price, _ := data["price"].(int64)

	if err := tx.Replace(ctx, handlerName, "atomicmarket_buyoffers", contractdb.Row{
		"contract":         h.args.AtomicMarketAccount,
		"buyoffer_id":      buyofferID,
		"buyer":            buyer,
		"recipient":        recipient,
		"price":            price,
		"updated_at_block": block.BlockNum,
	}, []string{"contract", "buyoffer_id"}); err != nil {
		return err
	}
	h.notifyIfReversible(tx, "buyoffers", notify.Message{
		Action: "update",
		Data:   map[string]interface{}{"buyoffer_id": buyofferID, "buyer": buyer, "recipient": recipient},
		Block:  notify.BlockRef{BlockNum: block.BlockNum, BlockID: block.BlockID.Hex()},
	})
	return nil
}

// onMarketplaceDelta keeps the marketplaces mirror consistent with the
// on-chain table even though lognewmarket already inserts new rows;
// marketplaces are never removed on-chain, so this only ever upserts.
func (h *Handler) onMarketplaceDelta(ctx context.Context, tx *contractdb.Tx, block chain.Block, delta chain.TableDelta) error {
	if !delta.Present {
		return nil
	}
	data, ok := decodedMap(delta.Decoded)
	if !ok {
		return nil
	}
	name := decodedName(data, "marketplace_name")
	creator := decodedName(data, "creator")
	return tx.Replace(ctx, handlerName, "atomicmarket_marketplaces", contractdb.Row{
		"contract":         h.args.AtomicMarketAccount,
		"marketplace_name": name,
		"creator":          creator,
		"updated_at_block": block.BlockNum,
	}, []string{"contract", "marketplace_name"})
}

// onTokenConfigDelta mirrors the accepted-settlement-token list.
func (h *Handler) onTokenConfigDelta(ctx context.Context, tx *contractdb.Tx, block chain.Block, delta chain.TableDelta) error {
	if !delta.Present {
		return tx.Delete(ctx, handlerName, "atomicmarket_tokenconfigs", contractdb.Where{
			{Column: "contract", Value: h.args.AtomicMarketAccount},
			{Column: "token_symbol", Value: delta.PrimaryKey},
		})
	}
	data, ok := decodedMap(delta.Decoded)
	if !ok {
		return nil
	}
	tokenContract := decodedName(data, "token_contract")
	tokenSymbol, _ := data["token_symbol"].(string)
	return tx.Replace(ctx, handlerName, "atomicmarket_tokenconfigs", contractdb.Row{
		"contract":       h.args.AtomicMarketAccount,
		"token_contract": tokenContract,
		"token_symbol":   tokenSymbol,
	}, []string{"contract", "token_symbol"})
}

// onSymbolPairDelta mirrors atomicmarket's own delphioracle-pair config
// table (distinct from the delphioracle contract's own pairs table handled
// by onOracleTableChange): it tells the indexer which settlement symbol a
// listing symbol is priced against, and which sym_pair_id to use for the
// price lookup in h.prices.
func (h *Handler) onSymbolPairDelta(ctx context.Context, tx *contractdb.Tx, block chain.Block, delta chain.TableDelta) error {
	if !delta.Present {
		return tx.Delete(ctx, handlerName, "atomicmarket_symbolpairs", contractdb.Where{
			{Column: "contract", Value: h.args.AtomicMarketAccount},
			{Column: "pair_id", Value: delta.PrimaryKey},
		})
	}
	data, ok := decodedMap(delta.Decoded)
	if !ok {
		return nil
	}
	listingSymbol, _ := data["listing_symbol"].(string)
	settlementSymbol, _ := data["settlement_symbol"].(string)
	delphiPairName := decodedName(data, "delphi_pair_name")
	return tx.Replace(ctx, handlerName, "atomicmarket_symbolpairs", contractdb.Row{
		"contract":          h.args.AtomicMarketAccount,
		"pair_id":           delta.PrimaryKey,
		"listing_symbol":    listingSymbol,
		"settlement_symbol": settlementSymbol,
		"delphi_pair_name":  delphiPairName,
	}, []string{"contract", "pair_id"})
}
