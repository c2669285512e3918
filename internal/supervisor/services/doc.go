// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

/*
Package services adapts slotgate components to suture's Serve(ctx) model.

HTTPServerService wraps an *http.Server: ListenAndServe runs in a goroutine,
and cancellation triggers Shutdown bounded by a timeout. http.ErrServerClosed
is not treated as a failure.

WebSocketHubService runs a *websocket.Hub event loop. The hub closes every
client when its context is cancelled.

The worker supervisor implements suture.Service itself and needs no wrapper.
*/
package services
