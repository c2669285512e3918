// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

/*
Command server runs the slotgate router.

The router owns one HTTP port. Requests under /api are routed by account slot
(A<n>) to the worker process that owns the slot's shard; workers are started
on first use and health-probed before traffic is forwarded. Workers publish
realtime events back through POST /internal/emit, which the router fans out
to WebSocket clients in the matching workspace room.

# Supervision

	root ("slotgate")
	├── workers-layer    worker-supervisor
	├── messaging-layer  websocket-hub
	└── api-layer        http-server

SIGINT or SIGTERM cancels the tree: the HTTP server drains, the hub closes
every socket, and each running worker gets SIGTERM followed by SIGKILL after
the kill grace.

# Configuration

Defaults, then an optional YAML file (CONFIG_PATH, ./config.yaml,
/etc/slotgate/config.yaml), then environment variables. The most common:

	HTTP_PORT=3000
	INTERNAL_SECRET=change-me
	WORKER_COMMAND=node
	WORKER_ARGS="worker/index.js"
	SHARDS_JSON='[{"id":"w1","port":4001,"from":"A1","to":"A50"}]'
	LOG_LEVEL=info

See internal/config for the full list.
*/
package main
