// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/slotgate/internal/logsink"
	"github.com/tomtom215/slotgate/internal/proxy"
	"github.com/tomtom215/slotgate/internal/relay"
	"github.com/tomtom215/slotgate/internal/shard"
	"github.com/tomtom215/slotgate/internal/websocket"
	"github.com/tomtom215/slotgate/internal/worker"
)

// stubWorkers answers Ensure with a fixed error and records invalidations.
type stubWorkers struct {
	err error

	mu          sync.Mutex
	invalidated []string
}

func (s *stubWorkers) Ensure(_ context.Context, id string) (worker.Status, error) {
	return worker.Status{ID: id, Running: s.err == nil}, s.err
}

func (s *stubWorkers) Invalidate(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated = append(s.invalidated, id)
	return true
}

func (s *stubWorkers) Snapshot() []worker.Status { return nil }

// closedPort returns a loopback port with nothing listening.
func closedPort(t *testing.T) uint16 {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := uint16(ln.Addr().(*net.TCPAddr).Port)
	_ = ln.Close()
	return port
}

func newStubRouter(t *testing.T, workers *stubWorkers, port uint16) http.Handler {
	t.Helper()
	table, err := shard.NewTable([]shard.Spec{{ID: "w1", Port: port}})
	if err != nil {
		t.Fatal(err)
	}
	mw := DefaultChiMiddlewareConfig()
	mw.RateLimitDisabled = true
	return NewRouter(Dependencies{
		Table:      table,
		Workers:    workers,
		Forwarder:  proxy.New(),
		Relay:      relay.New(websocket.NewHub(), "", nil),
		Logs:       logsink.New(0),
		Middleware: mw,
	}).SetupChi()
}

func TestProxy_StartErrorsMapToStatus(t *testing.T) {
	t.Parallel()

	startErr := func(err error) error { return &worker.StartError{ShardID: "w1", Err: err} }
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"timeout", startErr(worker.ErrStartTimeout), http.StatusInternalServerError},
		{"spawn", startErr(fmt.Errorf("%w: exec: not found", worker.ErrSpawn)), http.StatusInternalServerError},
		{"exited", startErr(worker.ErrWorkerExited), http.StatusBadGateway},
		{"suspended", startErr(worker.ErrStartSuspended), http.StatusServiceUnavailable},
		{"closed", startErr(worker.ErrSupervisorClosed), http.StatusServiceUnavailable},
		{"unknown shard", startErr(worker.ErrUnknownShard), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			router := newStubRouter(t, &stubWorkers{err: tt.err}, closedPort(t))

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/accounts/A1/x", nil))

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			var body errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body.OK || !strings.Contains(body.Error, "worker w1") || body.RequestID == "" {
				t.Errorf("body = %+v", body)
			}
		})
	}
}

func TestProxy_UpstreamFailureInvalidatesAndReturns502(t *testing.T) {
	t.Parallel()
	workers := &stubWorkers{}
	router := newStubRouter(t, workers, closedPort(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/anything", nil))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(body.Error, "worker w1 unreachable") {
		t.Errorf("error = %q", body.Error)
	}
	if len(workers.invalidated) != 1 || workers.invalidated[0] != "w1" {
		t.Errorf("invalidated = %v", workers.invalidated)
	}
}

func TestProxy_BodyTooLarge(t *testing.T) {
	t.Parallel()
	table, _ := shard.NewTable([]shard.Spec{{ID: "w1", Port: closedPort(t)}})
	mw := DefaultChiMiddlewareConfig()
	mw.RateLimitDisabled = true
	router := NewRouter(Dependencies{
		Table:        table,
		Workers:      &stubWorkers{},
		Forwarder:    proxy.New(),
		Relay:        relay.New(websocket.NewHub(), "", nil),
		Logs:         logsink.New(0),
		MaxBodyBytes: 16,
		Middleware:   mw,
	}).SetupChi()

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(`{"slot":"A1","pad":"xxxxxxxxxxxxxxxx"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestRecoverer(t *testing.T) {
	t.Parallel()

	handler := Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/x", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "boom") || strings.Contains(rec.Body.String(), "goroutine") {
		t.Errorf("panic details leaked: %s", rec.Body.String())
	}
	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Error != "internal error" {
		t.Errorf("error = %q", body.Error)
	}
}

func TestRecoverer_ReRaisesAbortHandler(t *testing.T) {
	t.Parallel()

	handler := Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		rec := recover()
		err, ok := rec.(error)
		if !ok || !errors.Is(err, http.ErrAbortHandler) {
			t.Errorf("recovered %v, want http.ErrAbortHandler", rec)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestHasJSONBody(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		contentType string
		body        string
		want        bool
	}{
		{"json", "application/json", "{}", true},
		{"json with charset", "application/json; charset=utf-8", "{}", true},
		{"text", "text/plain", "{}", false},
		{"no content type", "", "{}", false},
		{"empty body", "application/json", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var req *http.Request
			if tt.body == "" {
				req = httptest.NewRequest(http.MethodPost, "/api/x", nil)
			} else {
				req = httptest.NewRequest(http.MethodPost, "/api/x", strings.NewReader(tt.body))
			}
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			if got := hasJSONBody(req); got != tt.want {
				t.Errorf("hasJSONBody = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRateLimit_DisabledIsNoop(t *testing.T) {
	t.Parallel()
	m := NewChiMiddleware(&ChiMiddlewareConfig{RateLimitDisabled: true, RateLimitRequests: 1})

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	for _, mw := range []func(http.Handler) http.Handler{m.RateLimit(), m.RateLimitEmit()} {
		h := mw(next)
		for i := 0; i < 5; i++ {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			if rec.Code != http.StatusNoContent {
				t.Fatalf("request %d status = %d", i, rec.Code)
			}
		}
	}
}

func TestNewChiMiddleware_DefaultConfig(t *testing.T) {
	t.Parallel()
	m := NewChiMiddleware(nil)
	if m.config == nil {
		t.Fatal("config is nil")
	}
	if len(m.config.CORSAllowedOrigins) != 0 {
		t.Errorf("CORSAllowedOrigins = %v, want []", m.config.CORSAllowedOrigins)
	}
	if m.config.CORSMaxAge != 86400 {
		t.Errorf("CORSMaxAge = %d, want 86400", m.config.CORSMaxAge)
	}
	if m.config.EmitRateLimitRequests != 1200 || m.config.EmitRateLimitWindow != time.Minute {
		t.Errorf("emit limit = %d/%v, want 1200/1m", m.config.EmitRateLimitRequests, m.config.EmitRateLimitWindow)
	}
}
