// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

package api

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/afero"

	"github.com/tomtom215/slotgate/internal/logging"
	"github.com/tomtom215/slotgate/internal/logsink"
	"github.com/tomtom215/slotgate/internal/process"
	"github.com/tomtom215/slotgate/internal/proxy"
	"github.com/tomtom215/slotgate/internal/relay"
	"github.com/tomtom215/slotgate/internal/shard"
	"github.com/tomtom215/slotgate/internal/websocket"
	"github.com/tomtom215/slotgate/internal/worker"
	"github.com/tomtom215/slotgate/internal/workspace"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

// echoReply is what a test worker answers for API paths.
type echoReply struct {
	Shard       string `json:"shard"`
	Method      string `json:"method"`
	Path        string `json:"path"`
	Query       string `json:"query"`
	Body        string `json:"body"`
	ContentType string `json:"content_type"`
	RequestID   string `json:"request_id"`
}

// testWorker is an HTTP server standing in for a worker process. /health
// only answers 200 once the spawner has marked it ready.
type testWorker struct {
	id    string
	ready atomic.Bool
	srv   *httptest.Server
	port  uint16
}

func newTestWorker(t *testing.T, id string) *testWorker {
	t.Helper()
	w := &testWorker{id: id}
	w.srv = httptest.NewServer(http.HandlerFunc(w.serve))
	t.Cleanup(w.srv.Close)
	w.port = uint16(w.srv.Listener.Addr().(*net.TCPAddr).Port)
	return w
}

func (w *testWorker) serve(rw http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/health" {
		if w.ready.Load() {
			rw.WriteHeader(http.StatusOK)
			return
		}
		rw.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	if r.URL.Path == "/api/unavailable" {
		rw.Header().Set("X-Foo", "bar")
		rw.Header().Set("Content-Type", "text/plain")
		rw.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(rw, "worker says no")
		return
	}

	body, _ := io.ReadAll(r.Body)
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(echoReply{
		Shard:       w.id,
		Method:      r.Method,
		Path:        r.URL.Path,
		Query:       r.URL.RawQuery,
		Body:        string(body),
		ContentType: r.Header.Get("Content-Type"),
		RequestID:   r.Header.Get("X-Request-ID"),
	})
}

type testHandle struct {
	pid    int
	worker *testWorker
	once   sync.Once
	done   chan struct{}
}

func (h *testHandle) PID() int              { return h.pid }
func (h *testHandle) Done() <-chan struct{} { return h.done }
func (h *testHandle) ExitCode() int         { return -1 }

func (h *testHandle) Terminate(time.Duration) error {
	h.once.Do(func() {
		h.worker.ready.Store(false)
		close(h.done)
	})
	return nil
}

// testSpawner marks the named worker ready unless told to hang.
type testSpawner struct {
	workers map[string]*testWorker
	spawns  atomic.Int32
	// hang makes the next N spawns never become healthy.
	hang atomic.Int32
}

func (s *testSpawner) Spawn(spec process.Spec) (process.Handle, error) {
	n := s.spawns.Add(1)
	w := s.workers[spec.Name]
	if s.hang.Load() > 0 {
		s.hang.Add(-1)
	} else {
		w.ready.Store(true)
	}
	return &testHandle{pid: 4000 + int(n), worker: w, done: make(chan struct{})}, nil
}

// stack is a fully wired router over test workers.
type stack struct {
	server  *httptest.Server
	workers map[string]*testWorker
	spawner *testSpawner
	sup     *worker.Supervisor
	sink    *logsink.Sink
	fs      afero.Fs
	hub     *websocket.Hub
}

type stackOptions struct {
	secret       string
	startTimeout time.Duration
	middleware   *ChiMiddlewareConfig
}

// newStack wires w1 (A1-A50) and w2 (A51-A100).
func newStack(t *testing.T, so stackOptions) *stack {
	t.Helper()

	w1 := newTestWorker(t, "w1")
	w2 := newTestWorker(t, "w2")
	table, err := shard.NewTable([]shard.Spec{
		{ID: "w1", Port: w1.port, From: "A1", To: "A50"},
		{ID: "w2", Port: w2.port, From: "A51", To: "A100"},
	})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	opts := worker.DefaultOptions()
	opts.Command = "worker"
	opts.StartTimeout = 2 * time.Second
	if so.startTimeout > 0 {
		opts.StartTimeout = so.startTimeout
	}
	opts.PollInterval = 10 * time.Millisecond
	opts.ProbeTimeout = 100 * time.Millisecond
	opts.KillGrace = 10 * time.Millisecond

	spawner := &testSpawner{workers: map[string]*testWorker{"w1": w1, "w2": w2}}
	sink := logsink.New(0)
	sup := worker.New(table, opts, spawner, sink)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sup.Shutdown(ctx)
	})

	fs := afero.NewMemMapFs()
	hub := websocket.NewHub()

	mw := so.middleware
	if mw == nil {
		mw = DefaultChiMiddlewareConfig()
		mw.RateLimitDisabled = true
	}

	router := NewRouter(Dependencies{
		Table:      table,
		Workers:    sup,
		Forwarder:  proxy.New(),
		Relay:      relay.New(hub, so.secret, sink),
		Store:      workspace.NewStore(fs, "/data"),
		Logs:       sink,
		Realtime:   websocket.NewHandler(hub, nil),
		MasterPort: 3000,
		Middleware: mw,
	})

	server := httptest.NewServer(router.SetupChi())
	t.Cleanup(server.Close)

	return &stack{
		server:  server,
		workers: spawner.workers,
		spawner: spawner,
		sup:     sup,
		sink:    sink,
		fs:      fs,
		hub:     hub,
	}
}

func (s *stack) do(t *testing.T, method, path, contentType, body string) *http.Response {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, s.server.URL+path, rdr)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := s.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (s *stack) hasEvent(event string) bool {
	for _, row := range s.sink.Recent() {
		if row.Event == event {
			return true
		}
	}
	return false
}

func decodeEcho(t *testing.T, resp *http.Response) echoReply {
	t.Helper()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}
	var reply echoReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		t.Fatalf("decode echo: %v", err)
	}
	return reply
}

func decodeError(t *testing.T, resp *http.Response) errorResponse {
	t.Helper()
	var e errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&e); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if e.OK {
		t.Errorf("error envelope has ok=true")
	}
	return e
}
