// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package deserialize decodes binary action and table-delta payloads
// against a runtime ABI (spec §4.A). A fixed pool of workers answers
// single-shot decode requests. Each request carries the ABI it is decoded
// against; a worker holds no ABI of its own and does not load one. No
// mutable state is shared between a worker and the caller beyond the
// request/reply message itself.
package deserialize

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/eosio-contract-api/chain-indexer-go/internal/abi"
)

// Kind distinguishes the four payload shapes the pool decodes: spec §4.A's
// "actions, table rows, table deltas", plus the transaction-trace envelope.
type Kind int

const (
	KindAction Kind = iota
	KindTableRow
	KindTableDeltas
	KindActionTraces
)

// Request is one single-shot decode request: one message in, one message
// out, per spec §4.A.
type Request struct {
	ID       uuid.UUID
	Kind     Kind
	Contract string
	TypeName string // for KindAction/KindTableRow: the ABI type to decode against
	Data     []byte
	ABI      *abi.ABI // resolved by the caller via internal/abi.Cache before submission
	reply    chan Reply
}

// Reply carries the decoded value or the error back to the caller.
type Reply struct {
	ID    uuid.UUID
	Value interface{}
	Err   error
}

// Pool is a fixed-size set of isolated workers serving decode requests.
type Pool struct {
	backend Backend
	workers int
	reqCh   chan Request
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// NewPool starts a Pool of n workers using the backend SelectBackend picks.
func NewPool(ctx context.Context, n int) *Pool {
	backend := SelectBackend()
	ctx, cancel := context.WithCancel(ctx)
	group, ctx := errgroup.WithContext(ctx)

	p := &Pool{
		backend: backend,
		workers: n,
		reqCh:   make(chan Request, n*4),
		cancel:  cancel,
		group:   group,
	}
	for i := 0; i < n; i++ {
		id := i
		group.Go(func() error {
			p.runWorker(ctx, id)
			return nil
		})
	}
	return p
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	log.Debug("deserializer worker started", "worker", id, "backend", p.backend.Name())
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-p.reqCh:
			if !ok {
				return
			}
			req.reply <- p.handle(req)
		}
	}
}

func (p *Pool) handle(req Request) Reply {
	value, err := p.decode(req)
	return Reply{ID: req.ID, Value: value, Err: err}
}

func (p *Pool) decode(req Request) (interface{}, error) {
	r := newByteReader(req.Data)

	var value interface{}
	var err error
	switch req.Kind {
	case KindAction, KindTableRow:
		value, err = p.backend.DecodeType(req.ABI, req.TypeName, r)
	case KindTableDeltas:
		value, err = decodeTableDeltaArray(req.ABI, p.backend, r)
	case KindActionTraces:
		value, err = decodeTransactionTraceArray(r)
	default:
		return nil, fmt.Errorf("deserialize: unknown request kind %d", req.Kind)
	}
	if err != nil {
		return nil, err
	}
	if r.remaining() != 0 {
		return nil, &DecodeError{Type: req.TypeName, Consumed: len(req.Data) - r.remaining(), Total: len(req.Data)}
	}
	return value, nil
}

// Decode submits req and blocks for its reply, honoring ctx cancellation.
func (p *Pool) Decode(ctx context.Context, req Request) (interface{}, error) {
	req.ID = uuid.New()
	req.reply = make(chan Reply, 1)

	select {
	case p.reqCh <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case reply := <-req.reply:
		return reply.Value, reply.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close cancels the workers and waits for them to exit. Requests still
// waiting in the queue when it is called are not served.
func (p *Pool) Close() error {
	p.cancel()
	close(p.reqCh)
	return p.group.Wait()
}
