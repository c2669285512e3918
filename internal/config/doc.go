// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

/*
Package config provides centralized configuration management for Slotgate.

Configuration is loaded once at startup with koanf v2 in three layers:

 1. Built-in defaults (defaultConfig)
 2. Optional YAML file: $CONFIG_PATH, ./config.yaml, /etc/slotgate/config.yaml
 3. Environment variables (highest priority)

It is never re-read afterwards.

# Shard Table

Shards come from the YAML "shards" list, or from SHARDS_JSON which replaces
it entirely:

	SHARDS_JSON='[{"id":"w1","port":3001,"from":"A1","to":"A50"}]'

When neither is present a two-shard default (w1: A1-A50, w2: A51-A100) is
used. Validate rejects duplicate ids, duplicate ports and malformed slot
bounds. Overlapping ranges are accepted; the server logs a warning for each
overlapping pair at startup.

# Environment Variables

Server:
  - HTTP_PORT (default: 3000), HTTP_HOST (default: 127.0.0.1)
  - HTTP_SHUTDOWN_TIMEOUT (default: 10s)

Workers:
  - WORKER_COMMAND, WORKER_ARGS (whitespace separated)
  - WORKER_CONFIG_DIR, WORKER_DATA_DIR, WORKER_LOG_DIR
  - WORKER_PREWARM (default: 0)
  - WORKER_START_TIMEOUT (25s), WORKER_POLL_INTERVAL (500ms),
    WORKER_PROBE_TIMEOUT (1.2s), WORKER_KILL_GRACE (1s)
  - WORKER_BREAKER_FAILURES (5), WORKER_BREAKER_COOLDOWN (30s)
  - WORKER_MAX_CONCURRENCY (exported to workers as MAX_CONCURRENCY)
  - SHARDS_JSON

Security:
  - INTERNAL_SECRET: shared secret for /internal/emit (empty disables)
  - CORS_ORIGINS: comma separated
  - RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW, RATE_LIMIT_DISABLED
  - EMIT_RATE_LIMIT_REQUESTS (1200, 0 disables), EMIT_RATE_LIMIT_WINDOW (1m):
    shared by every worker calling /internal/emit from loopback

Logging:
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER

Workspace data:
  - DATA_DIR: root of <data_dir>/workspaces/<room>/<resource>.json
*/
package config
