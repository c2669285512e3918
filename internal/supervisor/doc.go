// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

/*
Package supervisor runs the router's long-lived components under suture v4.

The tree has three layers so a failure in one does not restart the others:

	root ("slotgate")
	├── workers-layer
	│   └── worker-supervisor   (spawns, probes and reaps shard workers)
	├── messaging-layer
	│   └── websocket-hub       (room registry for the realtime channel)
	└── api-layer
	    └── http-server         (chi router, proxy, relay endpoint)

Cancelling the context passed to Serve stops every layer. The worker
supervisor terminates its children on the way out, and the HTTP server drains
in-flight requests within ShutdownTimeout.

Supervisor events (restarts, backoff, timeouts) are logged through
sutureslog on the zerolog-backed slog handler from internal/logging.
*/
package supervisor
