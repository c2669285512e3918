// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
)

// mockService runs until cancelled, optionally failing its first N runs.
type mockService struct {
	name       string
	failFirst  int32
	runs       atomic.Int32
	stops      atomic.Int32
	started    chan struct{}
	startedSet atomic.Bool
}

func newMockService(name string) *mockService {
	return &mockService{name: name, started: make(chan struct{})}
}

func (m *mockService) Serve(ctx context.Context) error {
	n := m.runs.Add(1)
	defer m.stops.Add(1)

	if n <= m.failFirst {
		return errors.New("simulated failure")
	}
	if m.startedSet.CompareAndSwap(false, true) {
		close(m.started)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockService) String() string { return m.name }
