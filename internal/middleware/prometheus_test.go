// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/slotgate/internal/logging"
	"github.com/tomtom215/slotgate/internal/metrics"
)

func TestPrometheusMetrics(t *testing.T) {
	t.Parallel()

	t.Run("labels requests by route pattern", func(t *testing.T) {
		t.Parallel()
		r := chi.NewRouter()
		r.Use(PrometheusMetrics)
		r.Get("/api/accounts/{slot}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})

		counter := metrics.APIRequestsTotal.WithLabelValues("GET", "/api/accounts/{slot}", "418")
		before := testutil.ToFloat64(counter)

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/accounts/A7", nil))

		if rec.Code != http.StatusTeapot {
			t.Errorf("Expected status 418, got %d", rec.Code)
		}
		if got := testutil.ToFloat64(counter); got != before+1 {
			t.Errorf("Expected counter %v, got %v", before+1, got)
		}
	})

	t.Run("implicit 200 is recorded", func(t *testing.T) {
		t.Parallel()
		r := chi.NewRouter()
		r.Use(PrometheusMetrics)
		r.Get("/implicit", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("ok"))
		})

		counter := metrics.APIRequestsTotal.WithLabelValues("GET", "/implicit", "200")
		before := testutil.ToFloat64(counter)

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/implicit", nil))

		if got := testutil.ToFloat64(counter); got != before+1 {
			t.Errorf("Expected counter %v, got %v", before+1, got)
		}
	})

	t.Run("flusher is preserved", func(t *testing.T) {
		t.Parallel()
		var flushable bool
		handler := PrometheusMetrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, flushable = w.(http.Flusher)
		}))

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/stream", nil))

		if !flushable {
			t.Error("Expected wrapped writer to implement http.Flusher")
		}
	})
}

//nolint:paralleltest // replaces the global logger
func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	original := logging.Logger()
	logging.SetLogger(logging.NewTestLogger(&buf).Level(-1))
	t.Cleanup(func() { logging.SetLogger(original) })

	handler := RequestID(AccessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})))

	req := httptest.NewRequest(http.MethodPost, "/api/accounts/A1", nil)
	req.Header.Set(RequestIDHeader, "log-test-id")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	line := buf.String()
	for _, want := range []string{`"status":502`, `"request_id":"log-test-id"`, `"level":"warn"`, `"path":"/api/accounts/A1"`} {
		if !strings.Contains(line, want) {
			t.Errorf("Expected log line to contain %s, got %s", want, line)
		}
	}
}
