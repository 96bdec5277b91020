// Package metrics holds the Prometheus collectors of the broadcast service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Compositions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_compositions_total",
			Help: "Broadcast document compositions by outcome (ok, degraded, cached, placeholder)",
		},
		[]string{"outcome"},
	)

	ComposeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "broadcast_compose_duration_seconds",
			Help:    "Time spent reading the store and composing one round document",
			Buckets: prometheus.DefBuckets,
		},
	)

	ComposeErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_game_errors_total",
			Help: "Games excluded from composition because of structural errors",
		},
	)

	Invalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_invalidations_total",
			Help: "Invalidation signals by source (local, peer) and result",
		},
		[]string{"source", "result"},
	)

	FeedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_feed_requests_total",
			Help: "Feed endpoint requests by method and status",
		},
		[]string{"method", "status"},
	)

	LiveListeners = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcast_live_listeners",
			Help: "Open websocket listeners",
		},
	)

	StoreBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "broadcast_store_breaker_state",
			Help: "Store circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"breaker"},
	)
)
