// Package metrics provides Prometheus metrics for the SentinelForge backend
// (RED + pipeline + WebSocket). Scrapeable at /metrics; dashboards and
// runbooks can rely on these names.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sentinelforge"

var (
	// HTTPRequestTotal counts requests by method, path, status (RED: rate).
	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, path, and status.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDurationSeconds is request latency histogram (RED: duration).
	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 10), // 1ms to ~9.3s
		},
		[]string{"method", "path"},
	)

	// ThreatsProcessedTotal counts normalized threats by severity and type.
	ThreatsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "threats_processed_total",
			Help:      "Total number of threats normalized from detector events.",
		},
		[]string{"severity", "threat_type"},
	)

	// EventsDroppedTotal counts detector envelopes dropped as invalid.
	EventsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Total number of detector envelopes dropped as structurally invalid.",
		},
	)

	// ActionsExecutedTotal counts actuator outcomes by action type and result.
	ActionsExecutedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_executed_total",
			Help:      "Total number of remediation actions by type and outcome (success, failure, pending).",
		},
		[]string{"action_type", "outcome"},
	)

	// WebSocketConnectionsActive is current number of stream subscribers.
	WebSocketConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections_active",
			Help:      "Number of active WebSocket stream subscribers.",
		},
	)

	// BroadcastDroppedTotal counts fan-out sends dropped on full client buffers.
	BroadcastDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_dropped_total",
			Help:      "Total number of broadcast messages dropped because a subscriber buffer was full.",
		},
	)

	// DBQueryDurationSeconds is store query latency by operation.
	DBQueryDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Database query duration in seconds by operation.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"operation"},
	)
)
