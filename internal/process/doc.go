// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

/*
Package process abstracts child process lifecycle for the worker supervisor.

A Spawner starts a process from a Spec and returns a Handle. The handle
reports exit through Done (closed exactly once, whatever the reason) and
supports graceful teardown: Terminate sends SIGTERM and escalates to SIGKILL
if the process is still alive after the grace window.

Keeping the OS specifics here lets the supervisor be tested with a fake
Spawner that never forks.
*/
package process
