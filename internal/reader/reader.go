// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package reader is the block reader (spec §4.A): it holds the duplex
// websocket subscription to the chain node's state-history plugin, tracks
// continuity of the stream, and hands ordered raw blocks to its caller
// through a channel. Per-contract ABI decode of the payloads it carries is
// the deserializer pool's job, not this package's.
package reader

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/eosio-contract-api/chain-indexer-go/internal/deserialize"
)

// controlMessageRate caps how often this reader writes subscribe/ack
// control messages to the node, independent of how fast the consumer's
// queue depth changes — the pacer decides the window size, the limiter
// decides how often a new window is allowed to be sent.
const controlMessageRate = 20

// Reader owns the websocket connection to a single state-history endpoint.
type Reader interface {
	// Run connects, subscribes starting at startBlock, and streams blocks
	// into the returned channel until ctx is done or a fatal error occurs.
	// The channel is closed on return; callers must drain it before
	// observing the returned error.
	Run(ctx context.Context, startBlock uint32) (<-chan Delivery, <-chan error)
	// Ack acknowledges that queueDepth items are currently buffered
	// downstream, letting the reader's pacer decide the next window.
	Ack(queueDepth uint32)
	Close() error
}

type reader struct {
	uri     string
	cfg     Config
	conn    *websocket.Conn
	pacer   *pacer
	limiter *rate.Limiter

	ackCh chan uint32
}

// Config controls window sizing; zero values fall back to sane defaults.
type Config struct {
	MinWindow, MaxWindow, WindowStep, TargetQueueDepth uint32
	FetchBlock, FetchTraces, FetchDeltas               bool
}

// New dials uri lazily (on the first Run) and returns a Reader configured
// per cfg.
func New(uri string, cfg Config) Reader {
	if cfg.MinWindow == 0 {
		cfg.MinWindow = 1
	}
	if cfg.MaxWindow == 0 {
		cfg.MaxWindow = 100
	}
	if cfg.WindowStep == 0 {
		cfg.WindowStep = 10
	}
	if cfg.TargetQueueDepth == 0 {
		cfg.TargetQueueDepth = cfg.MaxWindow / 2
	}
	return &reader{
		uri:     uri,
		cfg:     cfg,
		pacer:   newPacer(cfg.MinWindow, cfg.MaxWindow, cfg.WindowStep, cfg.TargetQueueDepth),
		limiter: rate.NewLimiter(rate.Limit(controlMessageRate), controlMessageRate),
		ackCh:   make(chan uint32, 8),
	}
}

func (r *reader) Ack(queueDepth uint32) {
	select {
	case r.ackCh <- queueDepth:
	default:
		// a fresher depth reading is already queued; drop the stale one
	}
}

func (r *reader) Close() error {
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func (r *reader) Run(ctx context.Context, startBlock uint32) (<-chan Delivery, <-chan error) {
	out := make(chan Delivery, 64)
	errCh := make(chan error, 1)

	go r.run(ctx, startBlock, out, errCh)
	return out, errCh
}

func (r *reader) run(ctx context.Context, startBlock uint32, out chan<- Delivery, errCh chan<- error) {
	defer close(out)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0 // retry forever; the caller decides when to give up via ctx

	for {
		if err := ctx.Err(); err != nil {
			errCh <- err
			return
		}

		next, fatal := r.session(ctx, startBlock, out)
		if fatal != nil {
			errCh <- fatal
			return
		}
		startBlock = next

		wait := bo.NextBackOff()
		log.Warn("reader: connection lost, reconnecting", "uri", r.uri, "resume_at", startBlock, "backoff", wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			errCh <- ctx.Err()
			return
		}
	}
}

// session runs one connect-subscribe-stream cycle. It returns the block
// number to resume from on the next attempt, and a non-nil error only when
// the failure is not worth retrying (context cancellation).
func (r *reader) session(ctx context.Context, startBlock uint32, out chan<- Delivery) (uint32, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, r.uri, nil)
	if err != nil {
		log.Warn("reader: dial failed", "uri", r.uri, "err", err)
		return startBlock, nil
	}
	r.conn = conn
	defer conn.Close()

	if err := r.subscribe(ctx, startBlock); err != nil {
		log.Warn("reader: subscribe failed", "err", err)
		return startBlock, nil
	}

	resume := startBlock
	for {
		select {
		case <-ctx.Done():
			return resume, ctx.Err()
		case depth := <-r.ackCh:
			if err := r.ack(ctx, depth); err != nil {
				log.Warn("reader: ack failed", "err", err)
				return resume, nil
			}
		default:
		}

		_, payload, err := conn.ReadMessage()
		if err != nil {
			log.Warn("reader: read failed", "err", err)
			return resume, nil
		}

		res, err := deserialize.DecodeBlocksResultV0(payload)
		if err != nil {
			log.Error("reader: malformed envelope, dropping connection", "err", err)
			return resume, nil
		}

		delivery := deliveryFromResult(res)
		select {
		case out <- delivery:
			if res.HasThisBlock {
				resume = res.ThisBlock.BlockNum + 1
			}
		case <-ctx.Done():
			return resume, ctx.Err()
		}
	}
}

func (r *reader) subscribe(ctx context.Context, startBlock uint32) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}
	req := deserialize.EncodeBlocksRequestV0(startBlock, 0xFFFFFFFF, r.pacer.next(0), r.cfg.FetchBlock, r.cfg.FetchTraces, r.cfg.FetchDeltas)
	return r.conn.WriteMessage(websocket.BinaryMessage, req)
}

func (r *reader) ack(ctx context.Context, queueDepth uint32) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}
	req := deserialize.EncodeBlocksAckRequestV0(r.pacer.next(queueDepth))
	return r.conn.WriteMessage(websocket.BinaryMessage, req)
}
