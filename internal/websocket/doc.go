// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

/*
Package websocket provides the realtime channel between the router and the
administration UI.

Every connection joins exactly one workspace room when it is upgraded. The
room comes from the ?ws= query parameter (alias ?workspace=) or the
X-Workspace header and is normalized with workspace.NormalizeRoom, so the
same raw identifier always lands in the same room.

# Architecture

	Hub.RunWithContext        owns register/unregister
	    |
	    +-- rooms["default"]  -> {client 1, client 4}
	    +-- rooms["team-a"]   -> {client 2}

	Client.readPump           reads ping frames, answers with pong
	Client.writePump          drains the send buffer, sends keepalive pings

# Message Protocol

All frames are JSON:

	{"type": "hello", "data": {"room": "team-a"}}          // sent on join
	{"type": "ping"} / {"type": "pong"}                    // application keepalive
	{"type": "event", "event": "job_done", "data": {...}}  // relayed worker event

# Delivery

BroadcastToRoom is synchronous and non-blocking. Each member of the room gets
the message queued into its send buffer (256 messages). A client whose buffer
is full is disconnected rather than allowed to stall the broadcaster. Events
are best-effort and at-most-once; nothing is replayed to late joiners.

# Thread Safety

Room membership is guarded by the hub mutex. A client's send channel is only
written or closed under the client's own mutex, so late pongs never race with
the hub closing the channel.
*/
package websocket
