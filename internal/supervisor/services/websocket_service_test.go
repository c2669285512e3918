// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/slotgate/internal/websocket"
)

var _ suture.Service = (*WebSocketHubService)(nil)

type failingHub struct{ err error }

func (f failingHub) RunWithContext(context.Context) error { return f.err }
func (failingHub) GetClientCount() int                    { return 0 }

func TestWebSocketHubService_RunsHubUntilCancelled(t *testing.T) {
	t.Parallel()

	hub := websocket.NewHub()
	svc := NewWebSocketHubService(hub)
	if svc.String() != "websocket-hub" {
		t.Errorf("String() = %q", svc.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}

	select {
	case <-hub.Done():
	default:
		t.Error("hub not marked done after Serve returned")
	}
	if svc.Clients() != 0 {
		t.Errorf("Clients() = %d, want 0", svc.Clients())
	}
}

func TestWebSocketHubService_PropagatesHubError(t *testing.T) {
	t.Parallel()

	want := errors.New("hub broke")
	err := NewWebSocketHubService(failingHub{err: want}).Serve(context.Background())
	if !errors.Is(err, want) {
		t.Errorf("Serve = %v, want %v", err, want)
	}
}
