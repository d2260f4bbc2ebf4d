// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package notify publishes "this entity changed" events on named channels,
// gated by reversibility (spec §4.G). Messages are buffered per block and
// flushed on commit; publish failures are logged and never roll back the
// block (spec §7).
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/redis/go-redis/v9"
)

// BlockRef identifies the block a notification was produced in.
type BlockRef struct {
	BlockNum uint32 `json:"block_num"`
	BlockID  string `json:"block_id"`
}

// TxRef optionally identifies the transaction a notification was produced
// in, when the mutation was not itself a synthetic job.
type TxRef struct {
	TxID string `json:"txid"`
}

// Message is the structured payload published on a channel, per spec §6.
type Message struct {
	Action string      `json:"action"`
	Data   interface{} `json:"data"`
	Block  BlockRef    `json:"block"`
	Tx     *TxRef      `json:"transaction,omitempty"`
}

// Bus publishes to channels named
// "eosio-contract-api:<chain>:<reader>:<handler>:<contract>:<topic>" per
// spec §4.G, backed by redis pub/sub.
type Bus struct {
	client *redis.Client
	chain  string
	reader string
}

// New returns a Bus publishing through client, tagging every channel name
// with chain and reader.
func New(client *redis.Client, chain, reader string) *Bus {
	return &Bus{client: client, chain: chain, reader: reader}
}

// ChannelName builds the channel name scheme spec §6 fixes.
func (b *Bus) ChannelName(handler, contract, topic string) string {
	return fmt.Sprintf("eosio-contract-api:%s:%s:%s:%s:%s", b.chain, b.reader, handler, contract, topic)
}

// Staged is the per-block buffer of not-yet-published notifications. A
// handler appends to it through Stage; the receiver releases it through
// Flush once the block's transaction has committed (spec invariant 2).
type Staged struct {
	bus      *Bus
	messages []stagedMessage
}

type stagedMessage struct {
	channel string
	msg     Message
}

// NewStaged returns an empty per-block buffer bound to bus.
func (b *Bus) NewStaged() *Staged {
	return &Staged{bus: b}
}

// Stage buffers a notification for channel; it is not sent until Flush.
// Callers (handlers) only ever call this while reversible is true — the
// gating itself lives in the handler, per spec §4.G's "handler decision".
func (s *Staged) Stage(handler, contract, topic string, msg Message) {
	s.messages = append(s.messages, stagedMessage{channel: s.bus.ChannelName(handler, contract, topic), msg: msg})
}

// Flush publishes every staged message in enqueue order (spec §5) and logs,
// without returning, any publish failure — a broker outage must never roll
// back already-committed data (spec §7).
func (s *Staged) Flush(ctx context.Context) {
	if len(s.messages) == 0 {
		return
	}
	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	for _, m := range s.messages {
		payload, err := json.Marshal(m.msg)
		if err != nil {
			log.Error("notify: marshal message", "channel", m.channel, "err", err)
			continue
		}
		if err := s.bus.client.Publish(publishCtx, m.channel, payload).Err(); err != nil {
			log.Error("notify: publish failed", "channel", m.channel, "err", err)
		}
	}
	s.messages = nil
}

// Len reports how many notifications are currently staged.
func (s *Staged) Len() int { return len(s.messages) }
