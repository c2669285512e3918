// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Worker state values exported by WorkerState.
const (
	StateStopped  = 0
	StateStarting = 1
	StateRunning  = 2
	StateFailed   = 3
)

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotgate_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slotgate_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slotgate_api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Worker Supervisor Metrics
	WorkerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "slotgate_worker_state",
			Help: "Worker lifecycle state per shard (0=stopped, 1=starting, 2=running, 3=failed)",
		},
		[]string{"shard"},
	)

	WorkerStartsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotgate_worker_starts_total",
			Help: "Worker start attempts by outcome",
		},
		[]string{"shard", "result"}, // ready, adopted, timeout, spawn_error, exited, suspended
	)

	WorkerStartDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slotgate_worker_start_duration_seconds",
			Help:    "Time from spawn to first healthy /health response",
			Buckets: []float64{0.5, 1, 2, 5, 10, 15, 20, 25, 30},
		},
		[]string{"shard"},
	)

	WorkerExitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotgate_worker_exits_total",
			Help: "Worker process exits observed by the supervisor",
		},
		[]string{"shard"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "slotgate_worker_breaker_state",
			Help: "Worker start circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"shard"},
	)

	// Proxy Metrics
	ProxyRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotgate_proxy_requests_total",
			Help: "Requests forwarded to workers by upstream status code",
		},
		[]string{"shard", "status_code"},
	)

	ProxyUpstreamErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotgate_proxy_upstream_errors_total",
			Help: "Upstream connection failures while forwarding",
		},
		[]string{"shard"},
	)

	// Event Relay Metrics
	RelayEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotgate_relay_events_total",
			Help: "Worker emits by outcome",
		},
		[]string{"result"}, // delivered, unauthorized, bad_request
	)

	RelayDeliveriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slotgate_relay_deliveries_total",
			Help: "Individual websocket deliveries produced by emits",
		},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slotgate_websocket_connections",
			Help: "Current number of connected websocket clients",
		},
	)

	WSDroppedClients = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slotgate_websocket_dropped_clients_total",
			Help: "Clients disconnected because their send buffer was full",
		},
	)
)

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, route, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// SetWorkerState exports the lifecycle state of a shard's worker.
func SetWorkerState(shard string, state int) {
	WorkerState.WithLabelValues(shard).Set(float64(state))
}

// RecordWorkerStart counts a start attempt outcome.
func RecordWorkerStart(shard, result string) {
	WorkerStartsTotal.WithLabelValues(shard, result).Inc()
}

// RecordWorkerReady records time-to-healthy for a spawned worker.
func RecordWorkerReady(shard string, elapsed time.Duration) {
	WorkerStartDuration.WithLabelValues(shard).Observe(elapsed.Seconds())
}

// RecordWorkerExit counts a worker process exit.
func RecordWorkerExit(shard string) {
	WorkerExitsTotal.WithLabelValues(shard).Inc()
}

// SetBreakerState exports a shard's start breaker state.
func SetBreakerState(shard string, state float64) {
	CircuitBreakerState.WithLabelValues(shard).Set(state)
}

// RecordProxyResponse counts a forwarded request by upstream status.
func RecordProxyResponse(shard, statusCode string) {
	ProxyRequestsTotal.WithLabelValues(shard, statusCode).Inc()
}

// RecordProxyUpstreamError counts an upstream connection failure.
func RecordProxyUpstreamError(shard string) {
	ProxyUpstreamErrors.WithLabelValues(shard).Inc()
}

// RecordRelayEvent counts an emit outcome and, for delivered events, the
// number of websocket sessions reached.
func RecordRelayEvent(result string, delivered int) {
	RelayEventsTotal.WithLabelValues(result).Inc()
	if delivered > 0 {
		RelayDeliveriesTotal.Add(float64(delivered))
	}
}
