// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/slotgate/internal/logging"
	"github.com/tomtom215/slotgate/internal/proxy"
	"github.com/tomtom215/slotgate/internal/shard"
	"github.com/tomtom215/slotgate/internal/worker"
)

// Proxy is the catch-all for /api/*: resolve the shard, make sure its worker
// is running, then forward.
func (h *Handler) Proxy(w http.ResponseWriter, r *http.Request) {
	slot := shard.SlotFromPath(r.URL.Path)
	if slot == "" && hasJSONBody(r) {
		var err error
		r, slot, err = h.parseBody(w, r)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				respondError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			respondError(w, r, http.StatusBadRequest, "failed to read request body")
			return
		}
	}

	d, err := h.table.Route(slot)
	if err != nil {
		logging.Ctx(r.Context()).Debug().Str("slot", slot).Str("path", r.URL.Path).Msg("No shard for request")
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	r = r.WithContext(logging.ContextWithShard(r.Context(), d.ID))
	if _, err := h.workers.Ensure(r.Context(), d.ID); err != nil {
		if r.Context().Err() != nil {
			// Client gave up while the worker was starting.
			return
		}
		status := startErrorStatus(err)
		logging.Ctx(r.Context()).Error().Err(err).Int("status", status).Msg("Worker not available")
		respondError(w, r, status, err.Error())
		return
	}

	h.forwarder.Forward(w, r, d)
}

// getOrProxy serves GET and HEAD with next and proxies every other method.
func (h *Handler) getOrProxy(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			next(w, r)
			return
		}
		h.Proxy(w, r)
	}
}

// startErrorStatus maps worker start failures onto HTTP statuses.
func startErrorStatus(err error) int {
	switch {
	case errors.Is(err, worker.ErrStartSuspended), errors.Is(err, worker.ErrSupervisorClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, worker.ErrWorkerExited):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		// ErrStartTimeout, ErrSpawn, ErrUnknownShard
		return http.StatusInternalServerError
	}
}

// hasJSONBody reports whether r declares a JSON body worth inspecting.
func hasJSONBody(r *http.Request) bool {
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

// parseBody reads the body once. A JSON object is decoded (numbers kept
// exact) and attached to the context so the forwarder re-serializes it;
// anything else is restored byte-for-byte. The returned slot is whatever
// the body names.
func (h *Handler) parseBody(w http.ResponseWriter, r *http.Request) (*http.Request, string, error) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	_ = r.Body.Close()
	if err != nil {
		return r, "", err
	}

	restore := func() *http.Request {
		r.Body = io.NopCloser(bytes.NewReader(raw))
		r.ContentLength = int64(len(raw))
		return r
	}

	var parsed any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&parsed); err != nil {
		return restore(), "", nil
	}
	obj, ok := parsed.(map[string]any)
	if !ok {
		return restore(), "", nil
	}

	r = restore()
	return r.WithContext(proxy.WithParsedBody(r.Context(), obj)), shard.SlotFromBody(obj), nil
}
