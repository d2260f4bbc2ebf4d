// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics exposes the pipeline's health as Prometheus gauges and
// counters: how far the reader lags the chain head, how deep each
// handler's priority job queue sits between drains, and deserializer
// worker throughput/error counts. None of this feeds correctness — it is
// purely observability around the core ingestion path (spec.md §1
// explicitly keeps the query/observability surface external). The
// collectors are registered at init and served by Serve; no other package
// in this module updates them, and ObserveDecode has no caller outside
// this package's tests.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ReaderLag is the gap, in blocks, between the chain head and the last
	// block this reader delivered.
	ReaderLag = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "chain_indexer",
		Name:      "reader_lag_blocks",
		Help:      "Blocks between chain head and the last block delivered by this reader.",
	}, []string{"reader"})

	// BlocksProcessed counts committed blocks, split by whether they were
	// still inside the fork window when committed.
	BlocksProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chain_indexer",
		Name:      "blocks_processed_total",
		Help:      "Blocks committed by the state receiver.",
	}, []string{"reader", "reversible"})

	// ForksReplayed counts fork events the receiver has had to roll back.
	ForksReplayed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chain_indexer",
		Name:      "forks_replayed_total",
		Help:      "Fork events replayed by the state receiver.",
	}, []string{"reader"})

	// JobQueueDepth is the number of jobs queued for a handler awaiting the
	// next OnBlockComplete drain.
	JobQueueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "chain_indexer",
		Name:      "handler_job_queue_depth",
		Help:      "Jobs queued for a handler awaiting drain at block completion.",
	}, []string{"handler"})

	// DeserializeRequests counts deserializer pool requests by kind and
	// outcome.
	DeserializeRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chain_indexer",
		Name:      "deserialize_requests_total",
		Help:      "Deserializer pool decode requests.",
	}, []string{"kind", "outcome"})

	// DeserializeDuration times each decode request.
	DeserializeDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "chain_indexer",
		Name:      "deserialize_duration_seconds",
		Help:      "Deserializer pool decode request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"})

	// NotificationsPublished counts notify.Bus publishes by outcome.
	NotificationsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chain_indexer",
		Name:      "notifications_published_total",
		Help:      "Notification bus publish attempts.",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(
		ReaderLag,
		BlocksProcessed,
		ForksReplayed,
		JobQueueDepth,
		DeserializeRequests,
		DeserializeDuration,
		NotificationsPublished,
	)
}

// ObserveDecode is a small helper wrapping a deserializer call with the
// duration histogram and outcome counter, so callers don't hand-roll the
// timer bookkeeping at every call site.
func ObserveDecode(kind string, fn func() error) error {
	start := time.Now()
	err := fn()
	DeserializeDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	DeserializeRequests.WithLabelValues(kind, outcome).Inc()
	return err
}

// Serve starts a /metrics HTTP endpoint on addr and blocks until ctx is
// canceled. A non-nil error other than http.ErrServerClosed is logged by
// the caller; shutdown is graceful.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("metrics: shutdown", "err", err)
		}
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
