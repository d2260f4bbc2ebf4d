// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package atomicassets

import (
	"context"
	"fmt"

	"github.com/eosio-contract-api/chain-indexer-go/internal/chain"
	"github.com/eosio-contract-api/chain-indexer-go/internal/contractdb"
	"github.com/eosio-contract-api/chain-indexer-go/internal/deserialize"
	"github.com/eosio-contract-api/chain-indexer-go/internal/notify"
)

// decodedName reads a symbol-coded "name" field out of a decoded action or
// table-row map and unpacks it back to text.
func decodedName(m map[string]interface{}, key string) string {
	v, _ := m[key].(uint64)
	return deserialize.NameToString(v)
}

func decodedUint64(m map[string]interface{}, key string) uint64 {
	v, _ := m[key].(uint64)
	return v
}

func decodedAssetIDs(m map[string]interface{}, key string) []uint64 {
	raw, _ := m[key].([]interface{})
	out := make([]uint64, 0, len(raw))
	for _, v := range raw {
		if id, ok := v.(uint64); ok {
			out = append(out, id)
		}
	}
	return out
}

func (h *Handler) onLogMint(ctx context.Context, tx *contractdb.Tx, block chain.Block, txID string, trace chain.ActionTrace) error {
	data, ok := decodedMap(trace.Decoded)
	if !ok {
		return fmt.Errorf("logmint: action not decoded")
	}
	assetID := decodedUint64(data, "asset_id")
	owner := decodedName(data, "new_asset_owner")
	collection := decodedName(data, "collection_name")
	schema := decodedName(data, "schema_name")
	templateID, _ := data["template_id"].(int64)
	immutable, _ := data["immutable_data"].([]byte)
	mutable, _ := data["mutable_data"].([]byte)

	if err := tx.Insert(ctx, handlerName, "atomicassets_assets", contractdb.Row{
		"contract":        h.args.AtomicAssetsAccount,
		"asset_id":        assetID,
		"owner":           owner,
		"collection_name": collection,
		"schema_name":     schema,
		"template_id":     templateID,
		"immutable_data":  immutable,
		"mutable_data":    mutable,
		"minted_at_block": block.BlockNum,
		"minted_at_time":  block.Timestamp,
	}, []string{"contract", "asset_id"}); err != nil {
		return fmt.Errorf("insert asset %d: %w", assetID, err)
	}

	if h.args.StoreLogs {
		if err := h.appendLog(ctx, tx, "asset", assetID, "mint", data, txID, block); err != nil {
			return err
		}
	}
	h.notifyIfReversible(tx, "assets", notify.Message{
		Action: "new_asset",
		Data:   map[string]interface{}{"asset_id": assetID, "owner": owner},
		Block:  notify.BlockRef{BlockNum: block.BlockNum, BlockID: block.BlockID.Hex()},
		Tx:     &notify.TxRef{TxID: txID},
	})
	return nil
}

func (h *Handler) onLogTransfer(ctx context.Context, tx *contractdb.Tx, block chain.Block, txID string, trace chain.ActionTrace) error {
	data, ok := decodedMap(trace.Decoded)
	if !ok {
		return fmt.Errorf("logtransfer: action not decoded")
	}
	sender := decodedName(data, "sender")
	recipient := decodedName(data, "recipient")
	assetIDs := decodedAssetIDs(data, "asset_ids")
	memo, _ := data["memo"].(string)

	for _, assetID := range assetIDs {
		if err := tx.Update(ctx, handlerName, "atomicassets_assets",
			contractdb.Row{"owner": recipient},
			contractdb.Where{
				{Column: "contract", Value: h.args.AtomicAssetsAccount},
				{Column: "asset_id", Value: assetID},
			}); err != nil {
			return fmt.Errorf("update owner for asset %d: %w", assetID, err)
		}
		if h.args.StoreTransfers {
			if err := tx.Insert(ctx, handlerName, "atomicassets_transfers", contractdb.Row{
				"contract":  h.args.AtomicAssetsAccount,
				"asset_id":  assetID,
				"sender":    sender,
				"recipient": recipient,
				"memo":      memo,
				"txid":      txID,
				"transferred_at_block": block.BlockNum,
				"transferred_at_time":  block.Timestamp,
			}, nil); err != nil {
				return fmt.Errorf("insert transfer row for asset %d: %w", assetID, err)
			}
		}
		if h.args.StoreLogs {
			if err := h.appendLog(ctx, tx, "asset", assetID, "logtransfer", data, txID, block); err != nil {
				return err
			}
		}
		h.notifyIfReversible(tx, "transfers", notify.Message{
			Action: "update",
			Data:   map[string]interface{}{"asset_id": assetID, "sender": sender, "recipient": recipient},
			Block:  notify.BlockRef{BlockNum: block.BlockNum, BlockID: block.BlockID.Hex()},
			Tx:     &notify.TxRef{TxID: txID},
		})
	}
	return nil
}

func (h *Handler) onCreateOffer(ctx context.Context, tx *contractdb.Tx, block chain.Block, txID string, trace chain.ActionTrace) error {
	data, ok := decodedMap(trace.Decoded)
	if !ok {
		return fmt.Errorf("createoffer: action not decoded")
	}
	offerID := decodedUint64(data, "offer_id")
	sender := decodedName(data, "sender")
	recipient := decodedName(data, "recipient")
	memo, _ := data["memo"].(string)

	if err := tx.Insert(ctx, handlerName, "atomicassets_offers", contractdb.Row{
		"contract":  h.args.AtomicAssetsAccount,
		"offer_id":  offerID,
		"sender":    sender,
		"recipient": recipient,
		"memo":      memo,
		"state":     int(OfferStatePending),
		"created_at_block": block.BlockNum,
		"created_at_time":  block.Timestamp,
	}, []string{"contract", "offer_id"}); err != nil {
		return fmt.Errorf("insert offer %d: %w", offerID, err)
	}
	if h.args.StoreLogs {
		if err := h.appendLog(ctx, tx, "offer", offerID, "createoffer", data, txID, block); err != nil {
			return err
		}
	}
	h.notifyIfReversible(tx, "offers", notify.Message{
		Action: "create",
		Data:   map[string]interface{}{"offer_id": offerID, "sender": sender, "recipient": recipient},
		Block:  notify.BlockRef{BlockNum: block.BlockNum, BlockID: block.BlockID.Hex()},
		Tx:     &notify.TxRef{TxID: txID},
	})
	return nil
}

// onOfferStateChange handles acceptoffer/declineoffer/canceloffer, all of
// which carry only the offer_id and move the offer to a terminal state
// (spec.md §4.F's tagged variant). The contract's own "offers" table row is
// deleted on-chain the same block, but this handler keeps the row with its
// final state recorded rather than mirroring the delete, since downstream
// consumers (notably atomicmarket's sale-state propagation, scenario 2)
// need to read the terminal state after the fact.
func (h *Handler) onOfferStateChange(ctx context.Context, tx *contractdb.Tx, block chain.Block, txID string, trace chain.ActionTrace, state OfferState) error {
	data, ok := decodedMap(trace.Decoded)
	if !ok {
		return fmt.Errorf("%s: action not decoded", trace.Name)
	}
	offerID := decodedUint64(data, "offer_id")

	if err := tx.Update(ctx, handlerName, "atomicassets_offers",
		contractdb.Row{"state": int(state)},
		contractdb.Where{
			{Column: "contract", Value: h.args.AtomicAssetsAccount},
			{Column: "offer_id", Value: offerID},
		}); err != nil {
		return fmt.Errorf("update offer %d state: %w", offerID, err)
	}
	if h.args.StoreLogs {
		if err := h.appendLog(ctx, tx, "offer", offerID, trace.Name, data, txID, block); err != nil {
			return err
		}
	}
	h.notifyIfReversible(tx, "offers", notify.Message{
		Action: "state_change",
		Data:   map[string]interface{}{"offer_id": offerID, "state": state.String()},
		Block:  notify.BlockRef{BlockNum: block.BlockNum, BlockID: block.BlockID.Hex()},
		Tx:     &notify.TxRef{TxID: txID},
	})
	return nil
}

func (h *Handler) onLogBurnAsset(ctx context.Context, tx *contractdb.Tx, block chain.Block, txID string, trace chain.ActionTrace) error {
	data, ok := decodedMap(trace.Decoded)
	if !ok {
		return fmt.Errorf("logburnasset: action not decoded")
	}
	assetID := decodedUint64(data, "asset_id")

	if err := tx.Delete(ctx, handlerName, "atomicassets_assets", contractdb.Where{
		{Column: "contract", Value: h.args.AtomicAssetsAccount},
		{Column: "asset_id", Value: assetID},
	}); err != nil {
		return fmt.Errorf("delete burned asset %d: %w", assetID, err)
	}
	if h.args.StoreLogs {
		if err := h.appendLog(ctx, tx, "asset", assetID, "logburnasset", data, txID, block); err != nil {
			return err
		}
	}
	h.notifyIfReversible(tx, "assets", notify.Message{
		Action: "burn",
		Data:   map[string]interface{}{"asset_id": assetID},
		Block:  notify.BlockRef{BlockNum: block.BlockNum, BlockID: block.BlockID.Hex()},
		Tx:     &notify.TxRef{TxID: txID},
	})
	return nil
}
