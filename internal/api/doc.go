// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

/*
Package api is the router's HTTP surface, built on Chi.

# Routes

	GET  /health                       router and worker status (never proxied)
	GET  /metrics                      Prometheus exposition
	GET  /ws, /socket                  realtime channel
	POST /internal/emit                worker event callback (shared secret)
	GET  /api/system/recentLogs        operational log ring
	GET  /api/{accounts,roles,groups}  workspace files, else proxied
	*    /api/*                        resolve shard, ensure worker, forward

# Routing

The catch-all takes the slot from /api/accounts/<slot>/..., then from a JSON
body (slot, boundSlot, role.boundSlot). No slot routes to the first shard; an
unknown slot is a 400. A parsed body travels to the forwarder through the
request context and is re-serialized, so the inbound stream is read once.

# Errors

Every router-generated response is {"ok":false,"error":...,"request_id":...}:

	400  no shard for the slot, unreadable body
	401  bad internal secret
	500  worker start timeout or spawn failure, handler panic
	502  worker exited during start, worker unreachable
	503  worker starts suspended by the circuit breaker
*/
package api
