// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package atomicmarket

import (
	"context"
	"fmt"

	"github.com/eosio-contract-api/chain-indexer-go/internal/chain"
	"github.com/eosio-contract-api/chain-indexer-go/internal/contractdb"
	"github.com/eosio-contract-api/chain-indexer-go/internal/deserialize"
	"github.com/eosio-contract-api/chain-indexer-go/internal/handlers"
	"github.com/eosio-contract-api/chain-indexer-go/internal/notify"
)

func decodedName(m map[string]interface{}, key string) string {
	v, _ := m[key].(uint64)
	return deserialize.NameToString(v)
}

func decodedUint64(m map[string]interface{}, key string) uint64 {
	v, _ := m[key].(uint64)
	return v
}

// Every announce/cancel/purchase/bid/claim/buy-offer action here only logs
// and notifies: the authoritative row write happens in the matching
// onXxxDelta handler (for sales and auctions enqueued as a priority job,
// for buy-offers written directly), so a naive table-driven
// write and a derived action-driven one never race over who owns the
// column set (spec.md §4.E's "certain within-block computations ... must
// run after lower-priority mutations" rationale, realized concretely below
// in onOfferResolution).

func (h *Handler) onAnnounceSale(ctx context.Context, tx *contractdb.Tx, block chain.Block, txID string, trace chain.ActionTrace) error {
	return h.logAndNotify(ctx, tx, block, txID, trace, "sale", "sale_id", "sales", "create")
}

func (h *Handler) onCancelSale(ctx context.Context, tx *contractdb.Tx, block chain.Block, txID string, trace chain.ActionTrace) error {
	return h.logAndNotify(ctx, tx, block, txID, trace, "sale", "sale_id", "sales", "state_change")
}

func (h *Handler) onPurchaseSale(ctx context.Context, tx *contractdb.Tx, block chain.Block, txID string, trace chain.ActionTrace) error {
	return h.logAndNotify(ctx, tx, block, txID, trace, "sale", "sale_id", "sales", "state_change")
}

func (h *Handler) onAnnounceAuction(ctx context.Context, tx *contractdb.Tx, block chain.Block, txID string, trace chain.ActionTrace) error {
	return h.logAndNotify(ctx, tx, block, txID, trace, "auction", "auction_id", "auctions", "create")
}

func (h *Handler) onCancelAuction(ctx context.Context, tx *contractdb.Tx, block chain.Block, txID string, trace chain.ActionTrace) error {
	return h.logAndNotify(ctx, tx, block, txID, trace, "auction", "auction_id", "auctions", "state_change")
}

func (h *Handler) onAuctionBid(ctx context.Context, tx *contractdb.Tx, block chain.Block, txID string, trace chain.ActionTrace) error {
	return h.logAndNotify(ctx, tx, block, txID, trace, "auction", "auction_id", "bids", "create")
}

func (h *Handler) onAuctionClaim(ctx context.Context, tx *contractdb.Tx, block chain.Block, txID string, trace chain.ActionTrace) error {
	return h.logAndNotify(ctx, tx, block, txID, trace, "auction", "auction_id", "auctions", "state_change")
}

func (h *Handler) onCreateBuyOffer(ctx context.Context, tx *contractdb.Tx, block chain.Block, txID string, trace chain.ActionTrace) error {
	return h.logAndNotify(ctx, tx, block, txID, trace, "buyoffer", "buyoffer_id", "buyoffers", "create")
}

func (h *Handler) onCancelBuyOffer(ctx context.Context, tx *contractdb.Tx, block chain.Block, txID string, trace chain.ActionTrace) error {
	return h.logAndNotify(ctx, tx, block, txID, trace, "buyoffer", "buyoffer_id", "buyoffers", "state_change")
}

func (h *Handler) onFulfillBuyOffer(ctx context.Context, tx *contractdb.Tx, block chain.Block, txID string, trace chain.ActionTrace) error {
	return h.logAndNotify(ctx, tx, block, txID, trace, "buyoffer", "buyoffer_id", "buyoffers", "state_change")
}

func (h *Handler) onLogNewMarketplace(ctx context.Context, tx *contractdb.Tx, block chain.Block, txID string, trace chain.ActionTrace) error {
	data, ok := decodedMap(trace.Decoded)
	if !ok {
		return fmt.Errorf("lognewmarket: action not decoded")
	}
	name := decodedName(data, "marketplace_name")
	creator := decodedName(data, "creator")

	if err := tx.Insert(ctx, handlerName, "atomicmarket_marketplaces", contractdb.Row{
		"contract":         h.args.AtomicMarketAccount,
		"marketplace_name": name,
		"creator":          creator,
		"created_at_block": block.BlockNum,
		"created_at_time":  block.Timestamp,
	}, []string{"contract", "marketplace_name"}); err != nil {
		return fmt.Errorf("insert marketplace %s: %w", name, err)
	}
	if err := h.appendLog(ctx, tx, "marketplace", 0, "lognewmarket", data, txID, block); err != nil {
		return err
	}
	h.notifyIfReversible(tx, "marketplaces", notify.Message{
		Action: "create",
		Data:   map[string]interface{}{"marketplace_name": name, "creator": creator},
		Block:  notify.BlockRef{BlockNum: block.BlockNum, BlockID: block.BlockID.Hex()},
		Tx:     &notify.TxRef{TxID: txID},
	})
	return nil
}

// logAndNotify is the shared "no DB write, just log + publish" body every
// announce/cancel/purchase/bid/claim/buy-offer action shares; relationID
// is read from the field named by idField (0 if the decoded data lacks that
// field); an action that was not deserialized is an error.
func (h *Handler) logAndNotify(ctx context.Context, tx *contractdb.Tx, block chain.Block, txID string, trace chain.ActionTrace, relationName, idField, topic, notifyAction string) error {
	data, ok := decodedMap(trace.Decoded)
	if !ok {
		return fmt.Errorf("%s: action not decoded", trace.Name)
	}
	relationID := decodedUint64(data, idField)

	if err := h.appendLog(ctx, tx, relationName, relationID, trace.Name, data, txID, block); err != nil {
		return err
	}
	h.notifyIfReversible(tx, topic, notify.Message{
		Action: notifyAction,
		Data:   map[string]interface{}{idField: relationID},
		Block:  notify.BlockRef{BlockNum: block.BlockNum, BlockID: block.BlockID.Hex()},
		Tx:     &notify.TxRef{TxID: txID},
	})
	return nil
}

// onOfferResolution reacts to an atomicassets offer lifecycle action
// (acceptoffer/declineoffer/canceloffer). Only an acceptance can turn a
// sale SOLD; the other two leave whatever state the sales-table delta job
// already assigned alone. The job runs at PriorityActionUpdateSale, below
// PriorityTableSales, so it always has the last word within the block
// (spec.md §4.E's per-block drain invariant).
func (h *Handler) onOfferResolution(ctx context.Context, tx *contractdb.Tx, block chain.Block, txID string, trace chain.ActionTrace) error {
	if trace.Name != "acceptoffer" {
		return nil
	}
	data, ok := decodedMap(trace.Decoded)
	if !ok {
		return fmt.Errorf("%s: action not decoded", trace.Name)
	}
	offerID := decodedUint64(data, "offer_id")

	h.AddUpdateJob(func(ctx context.Context) error {
		return tx.Update(ctx, handlerName, "atomicmarket_sales",
			contractdb.Row{"state": int(SaleStateSold)},
			contractdb.Where{
				{Column: "contract", Value: h.args.AtomicMarketAccount},
				{Column: "offer_id", Value: offerID},
			})
	}, handlers.PriorityActionUpdateSale, "atomicmarket.offer-accepted")
	return nil
}
