// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package jobqueue implements the per-handler priority job scheduler from
// spec §4.E / §9: a min-heap keyed by (-priority, enqueue_seq) with a
// single worker loop, not a generic task library, since spec §9 explicitly
// calls out that a generic library's fairness semantics would not give the
// "non-increasing priority, FIFO within a priority" ordering spec §3
// invariant 4 requires.
package jobqueue

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
)

// Job is one unit of work queued during block processing, per spec §3.
type Job struct {
	Fn       func(ctx context.Context) error
	Priority int
	Site     string // cheap call-site identifier captured at enqueue time, spec §7/§9
	seq      uint64
}

// item is the heap element; seq breaks priority ties in enqueue order.
type item struct {
	job Job
	seq uint64
}

type minHeap []item

func (h minHeap) Len() int { return len(h) }
func (h minHeap) Less(i, j int) bool {
	if h[i].job.Priority != h[j].job.Priority {
		return h[i].job.Priority > h[j].job.Priority // non-increasing priority drains first
	}
	return h[i].seq < h[j].seq // FIFO within a priority
}
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x interface{}) { *h = append(*h, x.(item)) }
func (h *minHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Queue is one handler's serial (concurrency = 1) update queue, paused by
// default and drained only during onBlockComplete (spec §4.E, §4.F).
type Queue struct {
	mu      sync.Mutex
	heap    minHeap
	nextSeq uint64
}

// New returns an empty, paused Queue.
func New() *Queue {
	q := &Queue{}
	heap.Init(&q.heap)
	return q
}

// Add pushes fn to be drained at priority, the enqueue-time call-site
// identifier recorded as site for diagnostics (spec §7: captured at
// enqueue time, not at failure time).
func (q *Queue) Add(fn func(ctx context.Context) error, priority int, site string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	heap.Push(&q.heap, item{job: Job{Fn: fn, Priority: priority, Site: site, seq: q.nextSeq}, seq: q.nextSeq})
	q.nextSeq++
}

// Len reports how many jobs are queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len()
}

// Drain runs every queued job to completion, highest priority first and
// FIFO within a priority (spec invariant 4), stopping at the first error.
// It is the single worker loop spec §9 calls for: one goroutine, jobs run
// one at a time, never concurrently with each other.
func (q *Queue) Drain(ctx context.Context) error {
	for {
		q.mu.Lock()
		if q.heap.Len() == 0 {
			q.mu.Unlock()
			return nil
		}
		next := heap.Pop(&q.heap).(item)
		q.mu.Unlock()

		if err := next.job.Fn(ctx); err != nil {
			return fmt.Errorf("job %s (priority %d): %w", next.job.Site, next.job.Priority, err)
		}
	}
}
