// Parkwatch - Parking Session Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parkwatch

// Package metrics exposes Prometheus instrumentation for the lifecycle
// engine, the event transport, the live fan-out and the HTTP API.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Inbound events
	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkwatch_events_received_total",
			Help: "Inbound events by stream and outcome",
		},
		[]string{"stream", "outcome"}, // outcome: processed, decode_failed, store_failed, orphan, ignored
	)

	EventProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parkwatch_event_processing_seconds",
			Help:    "Time spent handling one inbound event",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"stream"},
	)

	// Debounce
	DebounceObservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkwatch_debounce_observations_total",
			Help: "Presence observations routed through the debounce gate",
		},
		[]string{"outcome"}, // pending, confirmed
	)

	DebouncePending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "parkwatch_debounce_pending",
			Help: "Spots with an unconfirmed detection run",
		},
	)

	// Session lifecycle
	SessionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkwatch_session_transitions_total",
			Help: "Session state transitions by resulting status",
		},
		[]string{"status"},
	)

	ActiveSessions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "parkwatch_active_sessions",
			Help: "Open sessions by status, as of the last sweep",
		},
		[]string{"status"},
	)

	AlertsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkwatch_alerts_emitted_total",
			Help: "Alerts raised by the overstay monitor",
		},
		[]string{"kind"},
	)

	SweepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parkwatch_sweep_duration_seconds",
			Help:    "Duration of one periodic sweep",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"sweep"}, // monitor, watchdog
	)

	SweepRecordErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkwatch_sweep_record_errors_total",
			Help: "Per-session failures during a sweep",
		},
		[]string{"sweep"},
	)

	// Outbound
	PublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkwatch_publish_total",
			Help: "Outbound events by topic and result",
		},
		[]string{"topic", "result"}, // ok, failed, circuit_open
	)

	LiveSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "parkwatch_live_subscribers",
			Help: "Registered dashboard subscribers",
		},
	)

	SubscribersPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "parkwatch_live_subscribers_pruned_total",
			Help: "Subscribers dropped after a failed delivery",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "parkwatch_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkwatch_circuit_breaker_requests_total",
			Help: "Calls through a circuit breaker by result (success, failure, rejected)",
		},
		[]string{"name", "result"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkwatch_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Notifications
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkwatch_notifications_total",
			Help: "Alert notifications by channel and result",
		},
		[]string{"channel", "result"},
	)

	// Archive
	ArchiveRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkwatch_archive_rows_total",
			Help: "Rows appended to the history archive",
		},
		[]string{"table"},
	)

	// API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parkwatch_api_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parkwatch_api_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordEvent records the outcome and latency of one inbound event.
func RecordEvent(stream, outcome string, duration time.Duration) {
	EventsReceived.WithLabelValues(stream, outcome).Inc()
	EventProcessingDuration.WithLabelValues(stream).Observe(duration.Seconds())
}

// RecordSweep records a sweep run and its per-record failures.
func RecordSweep(sweep string, duration time.Duration, failures int) {
	SweepDuration.WithLabelValues(sweep).Observe(duration.Seconds())
	if failures > 0 {
		SweepRecordErrors.WithLabelValues(sweep).Add(float64(failures))
	}
}

// RecordPublish records one outbound publish attempt.
func RecordPublish(topic, result string) {
	PublishTotal.WithLabelValues(topic, result).Inc()
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
