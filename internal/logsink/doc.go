// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

/*
Package logsink keeps the most recent operational events in memory.

Every row recorded through a Sink is appended to a fixed-capacity ring
(200 rows by default, oldest dropped first) and written to the process log
stream through the zerolog logger in internal/logging. The ring is served
read-only by GET /api/system/recentLogs so the admin UI can show worker
lifecycle and relay activity without shell access.

Rows are process-lifetime only; nothing is persisted.

	sink := logsink.New(logsink.DefaultCapacity)
	sink.Record(logsink.LevelInfo, "worker_ready", map[string]any{"shard": "w1", "port": 3101})

	for _, row := range sink.Recent() {
	    fmt.Println(row.Event)
	}
*/
package logsink
