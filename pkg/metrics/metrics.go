// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// ReconcileDuration tracks full reconciliation passes.
	ReconcileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "support_reconcile_duration_seconds",
			Help:    "Duration of a full log reconciliation pass",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		},
	)

	// LogEvents tracks the size of the last loaded log snapshot.
	LogEvents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "support_log_events",
			Help: "Number of events in the last loaded log snapshot",
		},
	)

	// ThreadsActive tracks the number of derived threads.
	ThreadsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "support_threads",
			Help: "Number of participant threads",
		},
	)

	// UnreadMessages tracks the total unread badge.
	UnreadMessages = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "support_unread_messages",
			Help: "Participant messages newer than the last operator activity",
		},
	)

	// DroppedEvents counts participant events without a usable key.
	DroppedEvents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "support_dropped_events",
			Help: "Participant events excluded from threads in the last pass",
		},
	)

	// RepliesTotal tracks operator replies.
	RepliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_replies_total",
			Help: "Operator events appended to the log",
		},
		[]string{"kind"},
	)

	// StoreErrorsTotal tracks failed store operations.
	StoreErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_store_errors_total",
			Help: "Failed or recovered message log store operations",
		},
		[]string{"backend", "op"},
	)

	// DraftsTotal tracks LLM reply drafts.
	DraftsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_drafts_total",
			Help: "Reply drafts requested from the LLM provider",
		},
		[]string{"provider", "status"},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordReconcile records the outcome of a reconciliation pass.
func RecordReconcile(duration float64, events, threads, unread, dropped int) {
	ReconcileDuration.Observe(duration)
	LogEvents.Set(float64(events))
	ThreadsActive.Set(float64(threads))
	UnreadMessages.Set(float64(unread))
	DroppedEvents.Set(float64(dropped))
}

// RecordStoreError counts a failed store operation.
func RecordStoreError(backend, op string) {
	StoreErrorsTotal.WithLabelValues(backend, op).Inc()
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
