// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

package relay

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/tomtom215/slotgate/internal/logging"
	"github.com/tomtom215/slotgate/internal/logsink"
	"github.com/tomtom215/slotgate/internal/metrics"
	"github.com/tomtom215/slotgate/internal/validation"
	"github.com/tomtom215/slotgate/internal/websocket"
	"github.com/tomtom215/slotgate/internal/workspace"
)

// SecretHeader carries the shared secret on internal calls.
const SecretHeader = "X-Internal-Secret"

var (
	// ErrUnauthorized is returned when the shared secret is missing or wrong.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrBadRequest is returned for a malformed emit request.
	ErrBadRequest = errors.New("bad request")
)

// Broadcaster delivers a message to one room and reports how many sessions
// accepted it.
type Broadcaster interface {
	BroadcastToRoom(room string, msg websocket.Message) int
}

// Request is the body of an emit call.
type Request struct {
	Workspace string `json:"ws"`
	Event     string `json:"event" validate:"required,max=128"`
	Payload   any    `json:"payload"`
}

// Result reports where an event went.
type Result struct {
	Room      string `json:"room"`
	Delivered int    `json:"delivered"`
}

// Relay authenticates and fans out worker events.
type Relay struct {
	hub    Broadcaster
	secret []byte
	sink   logsink.Recorder
}

// New creates a relay. An empty secret disables the header check.
func New(hub Broadcaster, secret string, sink logsink.Recorder) *Relay {
	return &Relay{hub: hub, secret: []byte(secret), sink: sink}
}

// RequiresSecret reports whether emit calls must present the shared secret.
func (r *Relay) RequiresSecret() bool {
	return len(r.secret) > 0
}

// Authorize checks token against the configured secret in constant time.
func (r *Relay) Authorize(token string) error {
	if !r.RequiresSecret() {
		return nil
	}
	if token == "" || subtle.ConstantTimeCompare([]byte(token), r.secret) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// Emit broadcasts req to the sessions joined to its normalized room.
// Nothing is broadcast when authorization or validation fails.
func (r *Relay) Emit(ctx context.Context, req Request, token string) (Result, error) {
	if err := r.Authorize(token); err != nil {
		metrics.RecordRelayEvent("unauthorized", 0)
		logging.Ctx(ctx).Warn().Msg("emit rejected: invalid internal secret")
		return Result{}, err
	}

	req.Event = strings.TrimSpace(req.Event)
	if err := validation.Validate(&req); err != nil {
		metrics.RecordRelayEvent("bad_request", 0)
		return Result{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}

	room := workspace.NormalizeRoom(req.Workspace)
	delivered := r.hub.BroadcastToRoom(room, websocket.Message{
		Type:  websocket.MessageTypeEvent,
		Event: req.Event,
		Data:  req.Payload,
	})

	metrics.RecordRelayEvent("forwarded", delivered)
	if r.sink != nil {
		r.sink.Record(logsink.LevelInfo, "emit_forwarded", map[string]any{
			"room":      room,
			"event":     req.Event,
			"delivered": delivered,
		})
	}
	return Result{Room: room, Delivered: delivered}, nil
}
