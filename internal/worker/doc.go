// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

/*
Package worker supervises one worker process per shard.

Each shard has a record with a lifecycle state:

	stopped --Ensure--> starting --/health 200--> running
	   ^                   |  \                      |
	   |                   |   `--timeout--> failed -'-- Ensure retries
	   `----process exit---+--------------------------'

Ensure is the only entry point callers need. It returns immediately for a
running worker, otherwise it joins (or begins) the shard's single in-flight
start. Starts are keyed by shard id with golang.org/x/sync/singleflight and
run on the supervisor's own context, so a caller that gives up does not
abort the start for everyone else.

A start first probes /health briefly. A worker that already answers (a
previously failed child that finished booting, or a process started outside
the supervisor) is adopted without spawning. Otherwise the child is spawned
with its environment, an exit watcher is registered and /health is polled
with a constant backoff until it answers 200 or the start deadline passes.

A timed-out child is left running and the record goes to failed; the next
Ensure probes again and, if the child is still not healthy, replaces it.

Repeated start failures trip a per-shard gobreaker circuit breaker, after
which Ensure fails fast with ErrStartSuspended until the cool-down passes.

Supervisor implements suture.Service: Serve prewarms the configured number
of shards, blocks until its context ends and then terminates every child
(SIGTERM, then SIGKILL after the grace window).
*/
package worker
