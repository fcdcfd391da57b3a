// Herald - Real-Time Message Center and Notification Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

// Package metrics provides Prometheus instrumentation for Herald:
// websocket connections and admissions, dispatch fan-out, channel layer
// publishes, database queries, and API endpoints.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSAdmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_admissions_total",
			Help: "Total number of WebSocket admission attempts",
		},
		[]string{"result"}, // "accepted", "rejected_token", "rejected_upgrade"
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_received_total",
			Help: "Total number of WebSocket messages received",
		},
	)

	WSMessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_dropped_total",
			Help: "Total number of WebSocket messages dropped due to slow clients",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"type"}, // "read", "write", "upgrade"
	)

	// Registry Metrics
	RegistryGroups = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "registry_groups",
			Help: "Current number of non-empty channel groups",
		},
	)

	// Dispatch Metrics
	DispatchMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_messages_total",
			Help: "Total number of dispatched messages",
		},
		[]string{"target_type"}, // "users", "roles", "departments", "all"
	)

	DispatchRecipientsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_recipients_total",
			Help: "Total number of recipient deliveries attempted",
		},
	)

	DispatchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_errors_total",
			Help: "Total number of dispatch errors",
		},
		[]string{"stage"}, // "persist", "resolve", "link", "send"
	)

	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_duration_seconds",
			Help:    "Duration of message dispatch including fan-out",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"target_type"},
	)

	// Channel Layer Metrics
	ChannelPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_publish_total",
			Help: "Total number of group sends through the channel layer",
		},
		[]string{"layer", "result"}, // layer: "local", "nats"; result: "ok", "error"
	)

	ChannelBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "channel_breaker_open",
			Help: "Whether the NATS publish circuit breaker is open (1) or closed (0)",
		},
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)
)

// RecordAdmission records the outcome of a WebSocket admission attempt.
func RecordAdmission(result string) {
	WSAdmissionsTotal.WithLabelValues(result).Inc()
}

// RecordDispatch records a completed dispatch with its fan-out size.
func RecordDispatch(targetType string, recipients int, duration time.Duration) {
	DispatchMessagesTotal.WithLabelValues(targetType).Inc()
	DispatchRecipientsTotal.Add(float64(recipients))
	DispatchDuration.WithLabelValues(targetType).Observe(duration.Seconds())
}

// RecordDispatchError records a dispatch failure at the given stage.
func RecordDispatchError(stage string) {
	DispatchErrors.WithLabelValues(stage).Inc()
}

// RecordChannelPublish records a group send through a channel layer.
func RecordChannelPublish(layer string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	ChannelPublishTotal.WithLabelValues(layer, result).Inc()
}

// RecordDBQuery records the duration and outcome of a database query.
func RecordDBQuery(operation string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation).Inc()
	}
}

// RecordAPIRequest records an API request with its latency.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the active request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
