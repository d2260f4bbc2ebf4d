// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package reader

import (
	"testing"

	"github.com/eosio-contract-api/chain-indexer-go/internal/deserialize"
	"github.com/stretchr/testify/require"
)

func TestDeliveryFromResultCarriesPayloads(t *testing.T) {
	res := deserialize.BlocksResultV0{
		ThisBlock:    deserialize.BlockPosition{BlockNum: 42, BlockID: "abc"},
		HasThisBlock: true,
		Block:        []byte{1, 2, 3},
	}
	d := deliveryFromResult(res)
	require.Equal(t, uint32(42), d.ThisBlock.BlockNum)
	require.Equal(t, "abc", d.ThisBlock.BlockID)
	require.Equal(t, []byte{1, 2, 3}, d.Block)
}
