// Package metrics exposes the bot's Prometheus surface. The teacher repo
// has no metrics package at all; this is grounded on
// svyatogor45-abitrage's internal/bot/metrics.go, which uses the same
// promauto Counter/Histogram/Gauge registration shape, restyled to this
// bot's naming and to the exact metric names spec.md's external interface
// table requires.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mirrorbot"

var (
	// EventsTotal counts every ingestion/execution event, labeled by type
	// (mirror_open, mirror_update, mirror_close, slippage_rejected,
	// submission_failed).
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_total",
		Help:      "Total count of bot lifecycle events by type.",
	}, []string{"event_type"})

	// TradeLatencySeconds observes wall-clock time from trade detection to
	// submission confirmation.
	TradeLatencySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "trade_latency_seconds",
		Help:      "Latency from leader trade detection to mirrored submission confirmation.",
		Buckets:   prometheus.DefBuckets,
	})

	// SlippageBps observes the realized slippage of confirmed fills, in
	// basis points.
	SlippageBps = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "slippage_bps",
		Help:      "Realized slippage of confirmed mirrored fills, in basis points.",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
	})

	// OpenPositions reports the current size of the position book.
	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "open_positions",
		Help:      "Number of currently open mirrored positions.",
	})

	// BusDepth reports the current queue depth of an event bus, labeled by
	// chain.
	BusDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "bus_depth",
		Help:      "Current depth of the per-chain event bus.",
	}, []string{"chain"})

	// BusDropped counts events dropped for back-pressure, labeled by chain.
	BusDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bus_dropped_total",
		Help:      "Total events dropped by an event bus under back-pressure.",
	}, []string{"chain"})
)

// RecordEvent increments EventsTotal for the given event type.
func RecordEvent(eventType string) {
	EventsTotal.WithLabelValues(eventType).Inc()
}

// RecordTrade records a confirmed mirrored trade's latency and realized
// slippage.
func RecordTrade(latencySeconds float64, slippageBps float64) {
	TradeLatencySeconds.Observe(latencySeconds)
	SlippageBps.Observe(slippageBps)
}
