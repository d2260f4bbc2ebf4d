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

// onCollectionDelta mirrors the collections table: present inserts or
// updates the row in place, absent deletes it (collections are never
// actually removed on-chain, but the defensive delete keeps the mirror
// honest if one ever is).
func (h *Handler) onCollectionDelta(ctx context.Context, tx *contractdb.Tx, block chain.Block, delta chain.TableDelta) error {
	name := deserialize.NameToString(delta.PrimaryKey)
	if !delta.Present {
		return tx.Delete(ctx, handlerName, "atomicassets_collections", contractdb.Where{
			{Column: "contract", Value: h.args.AtomicAssetsAccount},
			{Column: "collection_name", Value: name},
		})
	}
	data, ok := decodedMap(delta.Decoded)
	if !ok {
		return fmt.Errorf("collections: delta not decoded for %s", name)
	}
	row := contractdb.Row{
		"contract":            h.args.AtomicAssetsAccount,
		"collection_name":     decodedName(data, "collection_name"),
		"author":               decodedName(data, "author"),
		"allow_notify":         data["allow_notify"],
		"authorized_accounts":  namesOf(data, "authorized_accounts"),
		"notify_accounts":      namesOf(data, "notify_accounts"),
		"market_fee":           data["market_fee"],
		"data":                 data["data"],
		"updated_at_block":     block.BlockNum,
	}
	if err := tx.Replace(ctx, handlerName, "atomicassets_collections", row, []string{"contract", "collection_name"}); err != nil {
		return fmt.Errorf("upsert collection %s: %w", name, err)
	}
	h.notifyIfReversible(tx, "collections", notify.Message{
		Action: "update",
		Data:   map[string]interface{}{"collection_name": row["collection_name"]},
		Block:  notify.BlockRef{BlockNum: block.BlockNum, BlockID: block.BlockID.Hex()},
	})
	return nil
}

func (h *Handler) onSchemaDelta(ctx context.Context, tx *contractdb.Tx, block chain.Block, delta chain.TableDelta) error {
	if !delta.Present {
		return nil // schemas are immutable once created, never removed on-chain
	}
	data, ok := decodedMap(delta.Decoded)
	if !ok {
		return fmt.Errorf("schemas: delta not decoded")
	}
	row := contractdb.Row{
		"contract":         h.args.AtomicAssetsAccount,
		"collection_name":  delta.Scope, // schemas are scoped by their owning collection; already decoded in statereceiver
		"schema_name":      decodedName(data, "schema_name"),
		"format":           data["format"],
		"created_at_block": block.BlockNum,
	}
	if err := tx.Replace(ctx, handlerName, "atomicassets_schemas", row, []string{"contract", "collection_name", "schema_name"}); err != nil {
		return fmt.Errorf("upsert schema: %w", err)
	}
	h.notifyIfReversible(tx, "schemas", notify.Message{
		Action: "create",
		Data:   map[string]interface{}{"collection_name": row["collection_name"], "schema_name": row["schema_name"]},
		Block:  notify.BlockRef{BlockNum: block.BlockNum, BlockID: block.BlockID.Hex()},
	})
	return nil
}

func (h *Handler) onTemplateDelta(ctx context.Context, tx *contractdb.Tx, block chain.Block, delta chain.TableDelta) error {
	if !delta.Present {
		return nil // templates are immutable once created, never removed on-chain
	}
	data, ok := decodedMap(delta.Decoded)
	if !ok {
		return fmt.Errorf("templates: delta not decoded")
	}
	row := contractdb.Row{
		"contract":         h.args.AtomicAssetsAccount,
		"collection_name":  delta.Scope, // templates are scoped by their owning collection
		"template_id":      delta.PrimaryKey,
		"schema_name":      decodedName(data, "schema_name"),
		"transferable":     data["transferable"],
		"burnable":         data["burnable"],
		"max_supply":       data["max_supply"],
		"issued_supply":    data["issued_supply"],
		"immutable_data":   data["immutable_data"],
		"created_at_block": block.BlockNum,
	}
	if err := tx.Replace(ctx, handlerName, "atomicassets_templates", row, []string{"contract", "template_id"}); err != nil {
		return fmt.Errorf("upsert template %d: %w", delta.PrimaryKey, err)
	}
	h.notifyIfReversible(tx, "templates", notify.Message{
		Action: "create",
		Data:   map[string]interface{}{"template_id": delta.PrimaryKey},
		Block:  notify.BlockRef{BlockNum: block.BlockNum, BlockID: block.BlockID.Hex()},
	})
	return nil
}

// onAssetDelta mirrors the assets table directly. logmint/logtransfer
// already applied the authoritative mutation; this delta is mostly a
// defensive second writer (e.g. it is the only signal for contract-side
// data mutations that have no dedicated log action), applied as an upsert
// so it never fights the action-driven write.
func (h *Handler) onAssetDelta(ctx context.Context, tx *contractdb.Tx, block chain.Block, delta chain.TableDelta) error {
	if !delta.Present {
		return tx.Delete(ctx, handlerName, "atomicassets_assets", contractdb.Where{
			{Column: "contract", Value: h.args.AtomicAssetsAccount},
			{Column: "asset_id", Value: delta.PrimaryKey},
		})
	}
	data, ok := decodedMap(delta.Decoded)
	if !ok {
		return fmt.Errorf("assets: delta not decoded for %d", delta.PrimaryKey)
	}
	row := contractdb.Row{
		"contract":        h.args.AtomicAssetsAccount,
		"asset_id":        delta.PrimaryKey,
		"owner":            delta.Scope, // assets are scoped by their current owner
		"collection_name":  decodedName(data, "collection_name"),
		"schema_name":      decodedName(data, "schema_name"),
		"template_id":      data["template_id"],
		"mutable_data":     data["mutable_data"],
		"immutable_data":   data["immutable_data"],
		"updated_at_block": block.BlockNum,
	}
	if err := tx.Replace(ctx, handlerName, "atomicassets_assets", row, []string{"contract", "asset_id"}); err != nil {
		return fmt.Errorf("upsert asset %d: %w", delta.PrimaryKey, err)
	}
	return nil
}

// onOfferDelta only observes row removal: the actual state transition was
// already persisted by onOfferStateChange while the row still existed
// (spec §4.E step 4 runs actions before deltas in the same block), so a
// present=true here only covers the on-chain insert already handled by
// onCreateOffer and is skipped to avoid clobbering it with a partially
// decoded row.
func (h *Handler) onOfferDelta(context.Context, *contractdb.Tx, chain.Block, chain.TableDelta) error {
	return nil
}

func namesOf(m map[string]interface{}, key string) []string {
	raw, _ := m[key].([]interface{})
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if id, ok := v.(uint64); ok {
			out = append(out, deserialize.NameToString(id))
		}
	}
	return out
}
