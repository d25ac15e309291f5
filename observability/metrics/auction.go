package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AuctionMetrics tracks host-level execution of auction operations.
type AuctionMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	conflicts  *prometheus.CounterVec
	events     *prometheus.CounterVec
	rpc        *prometheus.CounterVec
}

var (
	auctionOnce     sync.Once
	auctionRegistry *AuctionMetrics
)

// Auction returns the lazily-initialised auction metrics registry.
func Auction() *AuctionMetrics {
	auctionOnce.Do(func() {
		auctionRegistry = &AuctionMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vaultauction",
				Subsystem: "host",
				Name:      "operations_total",
				Help:      "Count of executed operations by name and outcome.",
			}, []string{"op", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "vaultauction",
				Subsystem: "host",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution of executed operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"op"}),
			conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vaultauction",
				Subsystem: "host",
				Name:      "conflicts_total",
				Help:      "Count of operations aborted by a concurrent modification.",
			}, []string{"op"}),
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vaultauction",
				Subsystem: "engine",
				Name:      "events_total",
				Help:      "Count of committed engine events by type, including bids, extensions and settlements.",
			}, []string{"type"}),
			rpc: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "vaultauction",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
		}
		prometheus.MustRegister(
			auctionRegistry.operations,
			auctionRegistry.latency,
			auctionRegistry.conflicts,
			auctionRegistry.events,
			auctionRegistry.rpc,
		)
	})
	return auctionRegistry
}

func label(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

// ObserveOperation records the outcome and latency of one operation.
func (m *AuctionMetrics) ObserveOperation(op, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(label(op), label(outcome)).Inc()
	m.latency.WithLabelValues(label(op)).Observe(elapsed.Seconds())
}

// ObserveConflict counts an optimistic commit failure.
func (m *AuctionMetrics) ObserveConflict(op string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(label(op)).Inc()
}

// ObserveEvent counts a committed engine event.
func (m *AuctionMetrics) ObserveEvent(eventType string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(label(eventType)).Inc()
}

// ObserveRPC counts a JSON-RPC request.
func (m *AuctionMetrics) ObserveRPC(method, outcome string) {
	if m == nil {
		return
	}
	m.rpc.WithLabelValues(label(method), label(outcome)).Inc()
}
