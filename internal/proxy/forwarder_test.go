// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

package proxy

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/slotgate/internal/logging"
	"github.com/tomtom215/slotgate/internal/shard"
)

func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

func descriptorFor(t *testing.T, srv *httptest.Server) shard.Descriptor {
	t.Helper()
	port := srv.Listener.Addr().(*net.TCPAddr).Port
	return shard.Descriptor{ID: "w1", Port: uint16(port)}
}

func TestForward_MirrorsStatusHeadersAndBody(t *testing.T) {
	t.Parallel()

	var gotPath, gotQuery, gotHost, gotXFF string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery, gotHost = r.URL.Path, r.URL.RawQuery, r.Host
		gotXFF = r.Header.Get("X-Forwarded-For")
		w.Header().Set("X-Foo", "bar")
		w.Header().Add("Set-Cookie", "a=1")
		w.Header().Add("Set-Cookie", "b=2")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("worker is busy\x00\xff"))
	}))
	defer upstream.Close()
	d := descriptorFor(t, upstream)

	req := httptest.NewRequest(http.MethodGet, "/api/accounts/A7/status?verbose=1&x=%2F", nil)
	req.RemoteAddr = "10.0.0.9:5555"
	rec := httptest.NewRecorder()

	New().Forward(rec, req, d)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if got := rec.Header().Get("X-Foo"); got != "bar" {
		t.Errorf("X-Foo = %q, want bar", got)
	}
	if got := rec.Header().Values("Set-Cookie"); len(got) != 2 {
		t.Errorf("Set-Cookie = %v, want both values", got)
	}
	if got := rec.Body.String(); got != "worker is busy\x00\xff" {
		t.Errorf("body = %q", got)
	}
	if gotPath != "/api/accounts/A7/status" || gotQuery != "verbose=1&x=%2F" {
		t.Errorf("upstream saw %s?%s", gotPath, gotQuery)
	}
	if want := "127.0.0.1:" + strconv.Itoa(int(d.Port)); gotHost != want {
		t.Errorf("Host = %q, want %q", gotHost, want)
	}
	if gotXFF != "10.0.0.9" {
		t.Errorf("X-Forwarded-For = %q", gotXFF)
	}
}

func TestForward_ReserializesParsedBody(t *testing.T) {
	t.Parallel()

	var gotBody []byte
	var gotLength int64
	var gotType string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLength = r.ContentLength
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer upstream.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/roles", strings.NewReader("consumed"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Length", "8")
	parsed := map[string]any{"slot": "A3", "count": json.Number("12345678901234567890")}
	req = req.WithContext(WithParsedBody(req.Context(), parsed))
	rec := httptest.NewRecorder()

	New().Forward(rec, req, descriptorFor(t, upstream))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	if gotLength != int64(len(gotBody)) {
		t.Errorf("Content-Length %d does not match body length %d", gotLength, len(gotBody))
	}
	if gotType != "application/json" {
		t.Errorf("Content-Type = %q", gotType)
	}
	var echoed map[string]any
	dec := json.NewDecoder(strings.NewReader(string(gotBody)))
	dec.UseNumber()
	if err := dec.Decode(&echoed); err != nil {
		t.Fatalf("upstream body is not JSON: %v (%s)", err, gotBody)
	}
	if echoed["slot"] != "A3" || echoed["count"] != json.Number("12345678901234567890") {
		t.Errorf("unexpected body %s", gotBody)
	}
}

func TestForward_StreamsRawBody(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(w, r.Body)
	}))
	defer upstream.Close()

	payload := strings.Repeat("x", 3*copyBufferSize+17)
	req := httptest.NewRequest(http.MethodPut, "/api/blob", strings.NewReader(payload))
	rec := httptest.NewRecorder()

	New().Forward(rec, req, descriptorFor(t, upstream))

	if rec.Body.String() != payload {
		t.Errorf("body length %d, want %d", rec.Body.Len(), len(payload))
	}
}

func TestForward_FlushesChunks(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("first\n"))
		w.(http.Flusher).Flush()
		<-release
		_, _ = w.Write([]byte("second\n"))
	}))
	defer upstream.Close()
	d := descriptorFor(t, upstream)

	router := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		New().Forward(w, r, d)
	}))
	defer router.Close()

	resp, err := http.Get(router.URL + "/api/events")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	lineCh := make(chan string, 1)
	go func() {
		line, _ := reader.ReadString('\n')
		lineCh <- line
	}()

	select {
	case line := <-lineCh:
		if line != "first\n" {
			t.Errorf("first chunk = %q", line)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first chunk was not flushed before upstream finished")
	}
	close(release)

	rest, _ := io.ReadAll(reader)
	if string(rest) != "second\n" {
		t.Errorf("rest = %q", rest)
	}
}

func TestForward_DoesNotFollowRedirects(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer upstream.Close()

	rec := httptest.NewRecorder()
	New().Forward(rec, httptest.NewRequest(http.MethodGet, "/api/login", nil), descriptorFor(t, upstream))

	if rec.Code != http.StatusFound {
		t.Errorf("status = %d, want 302", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "/elsewhere" {
		t.Errorf("Location = %q", got)
	}
}

func TestForward_UpstreamUnreachable(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()
	d := shard.Descriptor{ID: "w9", Port: uint16(port)}

	var hookCalls atomic.Int32
	fwd := New()
	fwd.OnUpstreamError = func(r *http.Request, got shard.Descriptor, err error) {
		if got.ID == "w9" && err != nil {
			hookCalls.Add(1)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/accounts/A1", nil)
	req = req.WithContext(logging.ContextWithRequestID(req.Context(), "req-502"))
	rec := httptest.NewRecorder()
	fwd.Forward(rec, req, d)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	var body struct {
		OK        bool   `json:"ok"`
		Error     string `json:"error"`
		RequestID string `json:"request_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if body.OK || !strings.Contains(body.Error, "w9") || body.RequestID != "req-502" {
		t.Errorf("unexpected body %+v", body)
	}
	if hookCalls.Load() != 1 {
		t.Errorf("OnUpstreamError calls = %d, want 1", hookCalls.Load())
	}
}

func TestForward_ClientCancelledSkipsHook(t *testing.T) {
	t.Parallel()

	fwd := NewWithTransport(roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return nil, errors.New("dial failed")
	}))
	fwd.OnUpstreamError = func(*http.Request, shard.Descriptor, error) {
		t.Error("hook must not run for cancelled requests")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/x", nil).WithContext(ctx)
	fwd.Forward(httptest.NewRecorder(), req, shard.Descriptor{ID: "w1", Port: 1})
}

func TestRemoveConnectionHeaders(t *testing.T) {
	t.Parallel()

	h := http.Header{}
	h.Set("Connection", "close, X-Private")
	h.Set("X-Private", "1")
	h.Set("Keep-Alive", "timeout=5")
	h.Set("X-Foo", "bar")

	removeConnectionHeaders(h)

	for _, gone := range []string{"Connection", "X-Private", "Keep-Alive"} {
		if h.Get(gone) != "" {
			t.Errorf("%s should be removed", gone)
		}
	}
	if h.Get("X-Foo") != "bar" {
		t.Error("end-to-end header removed")
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
