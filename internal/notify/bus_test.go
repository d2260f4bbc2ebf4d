// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package notify

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestChannelNameScheme(t *testing.T) {
	bus := New(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), "eos", "reader1")
	require.Equal(t, "eosio-contract-api:eos:reader1:atomicassets:atomicassets:assets", bus.ChannelName("atomicassets", "atomicassets", "assets"))
}

func TestFlushSwallowsPublishErrors(t *testing.T) {
	// No broker is listening on this address; Flush must not return an
	// error or panic — publish failures are logged and swallowed (spec §7).
	bus := New(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}), "eos", "reader1")
	staged := bus.NewStaged()
	staged.Stage("atomicassets", "atomicassets", "assets", Message{Action: "mint", Block: BlockRef{BlockNum: 10}})
	require.Equal(t, 1, staged.Len())

	require.NotPanics(t, func() { staged.Flush(context.Background()) })
	require.Equal(t, 0, staged.Len())
}
