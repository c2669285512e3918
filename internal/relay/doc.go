// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

// Package relay rebroadcasts events pushed by workers to the UI sessions
// joined to the same workspace room.
//
// Workers call POST /internal/emit on the router's internal URL with
// {ws, event, payload}. When a shared secret is configured the call must carry
// it in the X-Internal-Secret header. Delivery is best-effort and
// at-most-once; sessions that are not connected at emit time never see the
// event.
package relay
