// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package reader

import "github.com/eosio-contract-api/chain-indexer-go/internal/deserialize"

// BlockPosition identifies a block without carrying its payload.
type BlockPosition = deserialize.BlockPosition

// Delivery is the not-yet-contract-deserialized unit the reader emits on
// its output channel; the state receiver hands Block/Traces/Deltas to the
// deserializer pool using the ABI in effect at this block's height.
type Delivery struct {
	Head                  BlockPosition
	LastIrreversibleBlock BlockPosition
	ThisBlock             BlockPosition
	PrevBlock             BlockPosition
	Block                 []byte
	Traces                []byte
	Deltas                []byte
}

func deliveryFromResult(res deserialize.BlocksResultV0) Delivery {
	return Delivery{
		Head:                  res.Head,
		LastIrreversibleBlock: res.LastIrreversibleBlock,
		ThisBlock:             res.ThisBlock,
		PrevBlock:             res.PrevBlock,
		Block:                 res.Block,
		Traces:                res.Traces,
		Deltas:                res.Deltas,
	}
}
