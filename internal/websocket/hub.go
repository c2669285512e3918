// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/tomtom215/slotgate/internal/logging"
	"github.com/tomtom215/slotgate/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful path (SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types for WebSocket communication
const (
	MessageTypeHello = "hello"
	MessageTypePing  = "ping"
	MessageTypePong  = "pong"
	MessageTypeEvent = "event"
)

// Message represents a WebSocket message
type Message struct {
	Type  string      `json:"type"`
	Event string      `json:"event,omitempty"`
	Data  interface{} `json:"data,omitempty"`
}

// HelloData is the payload of the hello message sent on join.
type HelloData struct {
	Room string `json:"room"`
}

// Hub maintains the set of active clients grouped by workspace room.
type Hub struct {
	rooms      map[string]map[*Client]bool
	Register   chan *Client
	Unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// RunWithContext processes client lifecycle events until ctx is done, then
// closes every connected client and returns ctx.Err().
//
// DETERMINISM: shutdown is checked before lifecycle events so a canceled hub
// never admits new clients.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		// Priority 1: shutdown
		select {
		case <-ctx.Done():
			h.stop(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: lifecycle events or shutdown (blocking)
		select {
		case <-ctx.Done():
			h.stop(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		}
	}
}

// Done is closed once the hub has shut down.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// register hands a client to the hub loop. It reports false, after closing
// the client, when the hub has already stopped.
func (h *Hub) register(c *Client) bool {
	select {
	case h.Register <- c:
		return true
	case <-h.done:
		c.closeSend()
		return false
	}
}

// unregister never blocks past hub shutdown.
func (h *Hub) unregister(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	members, ok := h.rooms[c.room]
	if !ok {
		members = make(map[*Client]bool)
		h.rooms[c.room] = members
	}
	members[c] = true
	total := h.countLocked()
	h.mu.Unlock()

	metrics.WSConnections.Inc()
	c.trySend(Message{Type: MessageTypeHello, Data: HelloData{Room: c.room}})

	logging.Info().
		Uint64("client_id", c.id).
		Str("room", c.room).
		Int("total_clients", total).
		Msg("websocket client connected")
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	removed := h.deleteLocked(c)
	total := h.countLocked()
	h.mu.Unlock()

	if !removed {
		return
	}
	c.closeSend()
	metrics.WSConnections.Dec()
	logging.Info().
		Uint64("client_id", c.id).
		Str("room", c.room).
		Int("total_clients", total).
		Msg("websocket client disconnected")
}

// deleteLocked removes c from its room, dropping the room when it empties.
// Caller holds h.mu.
func (h *Hub) deleteLocked(c *Client) bool {
	members, ok := h.rooms[c.room]
	if !ok || !members[c] {
		return false
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, c.room)
	}
	return true
}

func (h *Hub) countLocked() int {
	n := 0
	for _, members := range h.rooms {
		n += len(members)
	}
	return n
}

// BroadcastToRoom queues msg for every client currently joined to room and
// returns how many accepted it. Clients whose send buffer is full are
// disconnected.
//
// DETERMINISM: clients are visited in ID order.
func (h *Hub) BroadcastToRoom(room string, msg Message) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	members := h.rooms[room]
	clients := make([]*Client, 0, len(members))
	for client := range members {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	delivered := 0
	for _, client := range clients {
		if client.trySend(msg) {
			delivered++
			continue
		}
		h.deleteLocked(client)
		client.closeSend()
		metrics.WSConnections.Dec()
		metrics.WSDroppedClients.Inc()
		logging.Warn().
			Uint64("client_id", client.id).
			Str("room", room).
			Msg("websocket client send buffer full, disconnecting")
	}
	return delivered
}

// RoomClientCount returns the number of clients joined to room.
func (h *Hub) RoomClientCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// GetClientCount returns the total number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.countLocked()
}

// Rooms returns the names of rooms with at least one client, sorted.
func (h *Hub) Rooms() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.rooms))
	for name := range h.rooms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// stop closes all clients and logs the shutdown. ctx.Err() is expected here
// and is not logged as an error.
func (h *Hub) stop(ctx context.Context) {
	h.stopOnce.Do(func() { close(h.done) })
	closed := h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", closed).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// closeAllClients closes every client in ID order and returns how many were open.
func (h *Hub) closeAllClients() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	var clients []*Client
	for _, members := range h.rooms {
		for client := range members {
			clients = append(clients, client)
		}
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	for _, client := range clients {
		client.closeSend()
	}
	metrics.WSConnections.Sub(float64(len(clients)))
	h.rooms = make(map[string]map[*Client]bool)
	return len(clients)
}
