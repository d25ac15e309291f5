package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *AuctionMetrics
	m.ObserveOperation("start", "committed", time.Millisecond)
	m.ObserveConflict("start")
	m.ObserveEvent("auction.started")
	m.ObserveRPC("auction_start", "ok")
}

func TestAuctionCounters(t *testing.T) {
	m := Auction()
	require.Same(t, m, Auction())

	m.ObserveOperation("place_bid", "conflict", time.Millisecond)
	m.ObserveConflict("place_bid")
	m.ObserveEvent("")
	m.ObserveRPC("auction_placeBid", "ok")

	require.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("place_bid", "conflict")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.conflicts.WithLabelValues("place_bid")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("unknown")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.rpc.WithLabelValues("auction_placeBid", "ok")))
}

func operationLatency(t *testing.T, op string) *dto.Histogram {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "vaultauction_host_operation_duration_seconds" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if pair.GetName() == "op" && pair.GetValue() == op {
					return metric.GetHistogram()
				}
			}
		}
	}
	return nil
}

func TestOperationLatencyHistogram(t *testing.T) {
	m := Auction()
	m.ObserveOperation("redeem", "committed", 2*time.Millisecond)
	m.ObserveOperation("redeem", "rejected", 3*time.Second)

	hist := operationLatency(t, "redeem")
	require.NotNil(t, hist, "latency histogram not exported")
	require.Equal(t, uint64(2), hist.GetSampleCount())
	require.InDelta(t, 3.002, hist.GetSampleSum(), 1e-9)

	var fast uint64
	for _, bucket := range hist.GetBucket() {
		if bucket.GetUpperBound() == 0.005 {
			fast = bucket.GetCumulativeCount()
		}
	}
	require.Equal(t, uint64(1), fast)
}
