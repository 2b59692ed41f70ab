package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "appms_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// EngagementToggles counts toggle outcomes by relation (like|bookmark|vote) and action.
	EngagementToggles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appms_engagement_toggles_total",
			Help: "Total number of engagement toggles",
		},
		[]string{"relation", "action"},
	)

	// NotificationsComposed counts notifications persisted by kind.
	NotificationsComposed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appms_notifications_composed_total",
			Help: "Total number of notifications composed",
		},
		[]string{"kind"},
	)

	// NotificationDispatches counts publication attempts by publisher and result (ok|error|dropped).
	NotificationDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appms_notification_dispatches_total",
			Help: "Total number of notification publications",
		},
		[]string{"publisher", "result"},
	)

	// InvariantViolations counts detected consistency bugs such as counter underflow.
	InvariantViolations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appms_invariant_violations_total",
			Help: "Total number of invariant violations detected",
		},
		[]string{"invariant"},
	)

	// UnreadCacheLookups records unread counter cache hits and misses.
	UnreadCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appms_unread_cache_lookups_total",
			Help: "Unread notification count cache lookups",
		},
		[]string{"result"},
	)

	// RealtimeConnections tracks open websocket connections.
	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "appms_realtime_connections",
			Help: "Number of open realtime connections",
		},
	)

	// UpstreamRequests measures calls to the user service by result.
	UpstreamRequests = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "appms_upstream_request_seconds",
			Help:    "Latency of upstream user lookups",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"},
	)

	// BreakerState exposes circuit breaker state by breaker name (0 closed, 1 half-open, 2 open).
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "appms_circuit_breaker_state",
			Help: "Circuit breaker state",
		},
		[]string{"name"},
	)
)
