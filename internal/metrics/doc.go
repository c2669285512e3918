// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

/*
Package metrics provides Prometheus metrics for the router.

Metrics are registered on the default registry via promauto and exposed at
GET /metrics in Prometheus text format.

# Available Metrics

API:
  - slotgate_api_requests_total{method, route, status_code}
  - slotgate_api_request_duration_seconds{method, route}
  - slotgate_api_active_requests

Worker supervisor:
  - slotgate_worker_state{shard}: 0=stopped, 1=starting, 2=running, 3=failed
  - slotgate_worker_starts_total{shard, result}
  - slotgate_worker_start_duration_seconds{shard}
  - slotgate_worker_exits_total{shard}
  - slotgate_worker_breaker_state{shard}: 0=closed, 1=half-open, 2=open

Proxy:
  - slotgate_proxy_requests_total{shard, status_code}
  - slotgate_proxy_upstream_errors_total{shard}

Relay and websocket:
  - slotgate_relay_events_total{result}
  - slotgate_relay_deliveries_total
  - slotgate_websocket_connections
  - slotgate_websocket_dropped_clients_total
*/
package metrics
