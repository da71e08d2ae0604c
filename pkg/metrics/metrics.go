package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ===== dialogue metrics =====
	SearchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nlu",
			Subsystem: "dialogue",
			Name:      "search_total",
			Help:      "Questions answered partitioned by the cascade stage that produced the answer.",
		},
		[]string{"stage", "outcome"}, // outcome: matched|fallback|error_page
	)

	SearchSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nlu",
			Subsystem: "dialogue",
			Name:      "search_seconds",
			Help:      "Latency of one cascade run.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1, 2},
		},
		[]string{"stage"},
	)

	ConfigTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nlu",
			Subsystem: "dialogue",
			Name:      "config_total",
			Help:      "Topic configuration requests by kind and result.",
		},
		[]string{"kind", "result"}, // kind: list|update
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "nlu",
			Subsystem: "session",
			Name:      "active",
			Help:      "Sessions currently held in memory.",
		},
	)

	// ===== dependency metrics =====
	StoreErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nlu",
			Subsystem: "knowledge",
			Name:      "errors_total",
			Help:      "Knowledge store failures by operation.",
		},
		[]string{"op"},
	)

	EnrichTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nlu",
			Subsystem: "online",
			Name:      "requests_total",
			Help:      "Online enrichment lookups by kind and result.",
		},
		[]string{"kind", "result"}, // result: ok|cache_hit|error
	)

	// ===== transport metrics =====
	ConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "nlu",
			Subsystem: "tcp",
			Name:      "connections_active",
			Help:      "Open TCP connections.",
		},
	)

	FramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nlu",
			Subsystem: "tcp",
			Name:      "frames_total",
			Help:      "Inbound frames by kind.",
		},
		[]string{"kind"}, // ask|config|malformed
	)

	RecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nlu",
			Subsystem: "review",
			Name:      "records_total",
			Help:      "Review records published and persisted by kind and result.",
		},
		[]string{"kind", "result"},
	)
)

var regOnce sync.Once

// MustRegisterAll registers all collectors exactly once.
func MustRegisterAll() {
	regOnce.Do(func() {
		prometheus.MustRegister(
			SearchTotal,
			SearchSeconds,
			ConfigTotal,
			ActiveSessions,
			StoreErrorsTotal,
			EnrichTotal,
			ConnectionsActive,
			FramesTotal,
			RecordsTotal,
		)
	})
}
