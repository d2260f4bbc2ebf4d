// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package statereceiver

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/eosio-contract-api/chain-indexer-go/internal/abi"
	"github.com/eosio-contract-api/chain-indexer-go/internal/chain"
	"github.com/eosio-contract-api/chain-indexer-go/internal/deserialize"
	"github.com/eosio-contract-api/chain-indexer-go/internal/reader"
)

// sysABI is the chain-level envelope ABI (spec §4.A's contract_row /
// contract_table structs); it carries no Actions/Tables of its own, so
// Lookup is never consulted for it.
var sysABI = abi.New("", nil, nil, nil, nil)

// assembleBlock turns a reader.Delivery's opaque byte blobs into a fully
// decoded chain.Block: the system-level envelope for traces and deltas is
// peeled by the deserializer pool, then each action/row payload still
// needing contract-level decode is resolved against the ABI in effect for
// its contract at this height, and only decoded if scope says so.
func (rcv *Receiver) assembleBlock(ctx context.Context, d reader.Delivery) (chain.Block, error) {
	blockNum := d.ThisBlock.BlockNum

	block := chain.Block{
		BlockNum:                 blockNum,
		BlockID:                  common.HexToHash(d.ThisBlock.BlockID),
		Previous:                 common.HexToHash(d.PrevBlock.BlockID),
		LastIrreversibleBlockNum: d.LastIrreversibleBlock.BlockNum,
	}

	if len(d.Traces) > 0 {
		txs, err := rcv.decodeTransactions(ctx, blockNum, d.Traces)
		if err != nil {
			return chain.Block{}, fmt.Errorf("decode traces: %w", err)
		}
		block.Transactions = txs
	}

	if len(d.Deltas) > 0 {
		deltas, err := rcv.decodeDeltas(ctx, blockNum, d.Deltas)
		if err != nil {
			return chain.Block{}, fmt.Errorf("decode deltas: %w", err)
		}
		block.Deltas = deltas
	}

	return block, nil
}

func (rcv *Receiver) decodeTransactions(ctx context.Context, blockNum uint32, raw []byte) ([]chain.Transaction, error) {
	value, err := rcv.deserPool.Decode(ctx, deserialize.Request{Kind: deserialize.KindActionTraces, Data: raw, ABI: sysABI})
	if err != nil {
		return nil, err
	}
	decodedTxs, ok := value.([]deserialize.DecodedTransaction)
	if !ok {
		return nil, fmt.Errorf("unexpected traces decode result type %T", value)
	}

	out := make([]chain.Transaction, 0, len(decodedTxs))
	for _, dtx := range decodedTxs {
		traces := make([]chain.ActionTrace, 0, len(dtx.Traces))
		for _, dt := range dtx.Traces {
			filter, matched := rcv.scope.MatchAction(dt.Account, dt.Name)
			auths := make([]chain.Authorization, 0, len(dt.Authorization))
			for _, a := range dt.Authorization {
				auths = append(auths, chain.Authorization{Actor: a.Actor, Permission: a.Permission})
			}
			trace := chain.ActionTrace{
				GlobalSeq:       dt.GlobalSeq,
				Account:         dt.Account,
				Name:            dt.Name,
				Authorization:   auths,
				Data:            dt.Data,
				ParentGlobalSeq: dt.ParentOrdinal,
			}
			if matched && filter.Deserialize {
				if decoded, err := rcv.decodeAction(ctx, blockNum, dt.Account, dt.Name, dt.Data); err != nil {
					log.Warn("statereceiver: action decode failed, keeping raw bytes", "contract", dt.Account, "action", dt.Name, "err", err)
				} else {
					trace.Decoded = decoded
				}
			}
			traces = append(traces, trace)
		}
		out = append(out, chain.Transaction{TxID: common.HexToHash(dtx.TxID), Traces: traces})
	}
	return out, nil
}

func (rcv *Receiver) decodeAction(ctx context.Context, blockNum uint32, contract, name string, data []byte) (interface{}, error) {
	contractABI, ok := rcv.abiCache.Lookup(contract, blockNum)
	if !ok {
		return nil, fmt.Errorf("no ABI known for %s at block %d", contract, blockNum)
	}
	typeName, ok := contractABI.Actions[name]
	if !ok {
		return nil, fmt.Errorf("ABI for %s has no action %q", contract, name)
	}
	return rcv.deserPool.Decode(ctx, deserialize.Request{Kind: deserialize.KindAction, Contract: contract, TypeName: typeName, Data: data, ABI: contractABI})
}

func (rcv *Receiver) decodeDeltas(ctx context.Context, blockNum uint32, raw []byte) ([]chain.TableDelta, error) {
	value, err := rcv.deserPool.Decode(ctx, deserialize.Request{Kind: deserialize.KindTableDeltas, Data: raw, ABI: sysABI})
	if err != nil {
		return nil, err
	}
	groups, ok := value.([]deserialize.DecodedTableDelta)
	if !ok {
		return nil, fmt.Errorf("unexpected deltas decode result type %T", value)
	}

	var out []chain.TableDelta
	for _, g := range groups {
		if g.Name != "contract_row" {
			continue
		}
		for _, row := range g.Rows {
			delta, err := rcv.toTableDelta(ctx, blockNum, row)
			if err != nil {
				log.Warn("statereceiver: table delta decode failed, keeping raw bytes", "err", err)
			}
			out = append(out, delta)
		}
	}
	return out, nil
}

func (rcv *Receiver) toTableDelta(ctx context.Context, blockNum uint32, row deserialize.DecodedRow) (chain.TableDelta, error) {
	contract := nameField(row.Fields, "code")
	scope := nameField(row.Fields, "scope")
	table := nameField(row.Fields, "table")
	payer := nameField(row.Fields, "payer")
	primaryKey, _ := row.Fields["primary_key"].(uint64)
	value, _ := row.Fields["value"].([]byte)

	delta := chain.TableDelta{
		Contract:   contract,
		Scope:      scope,
		Table:      table,
		PrimaryKey: primaryKey,
		Payer:      payer,
		Present:    row.Present,
		Data:       value,
	}

	filter, matched := rcv.scope.MatchTable(contract, table)
	if !matched || !filter.Deserialize {
		return delta, nil
	}

	contractABI, ok := rcv.abiCache.Lookup(contract, blockNum)
	if !ok {
		return delta, fmt.Errorf("no ABI known for %s at block %d", contract, blockNum)
	}
	typeName, ok := contractABI.Tables[table]
	if !ok {
		return delta, fmt.Errorf("ABI for %s has no table %q", contract, table)
	}
	decoded, err := rcv.deserPool.Decode(ctx, deserialize.Request{Kind: deserialize.KindTableRow, Contract: contract, TypeName: typeName, Data: value, ABI: contractABI})
	if err != nil {
		return delta, err
	}
	delta.Decoded = decoded
	return delta, nil
}

// nameField unpacks a symbol-coded name field (systemStructs in tabledelta.go
// declares code/scope/table/payer as ABI type "name", which decodes to a
// raw uint64, not a string).
func nameField(fields map[string]interface{}, key string) string {
	v, _ := fields[key].(uint64)
	return deserialize.NameToString(v)
}
