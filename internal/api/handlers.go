// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/slotgate/internal/logging"
	"github.com/tomtom215/slotgate/internal/logsink"
	"github.com/tomtom215/slotgate/internal/proxy"
	"github.com/tomtom215/slotgate/internal/relay"
	"github.com/tomtom215/slotgate/internal/shard"
	"github.com/tomtom215/slotgate/internal/worker"
	"github.com/tomtom215/slotgate/internal/workspace"
)

// Workers is the part of the worker supervisor the API needs.
type Workers interface {
	Ensure(ctx context.Context, shardID string) (worker.Status, error)
	Invalidate(shardID string) bool
	Snapshot() []worker.Status
}

// LogSource exposes the recent operational log rows.
type LogSource interface {
	Recent() []logsink.Row
}

// Handler holds the collaborators behind every endpoint.
type Handler struct {
	table     *shard.Table
	workers   Workers
	forwarder *proxy.Forwarder
	relay     *relay.Relay
	store     *workspace.Store
	logs      LogSource
	realtime  http.Handler

	masterPort int
	maxBody    int64
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	OK      bool            `json:"ok"`
	Master  MasterInfo      `json:"master"`
	Workers []worker.Status `json:"workers"`
}

// MasterInfo describes the router process itself.
type MasterInfo struct {
	Port int `json:"port"`
}

// Health reports the router and every shard's worker state. It never
// starts or proxies to a worker.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{
		OK:      true,
		Master:  MasterInfo{Port: h.masterPort},
		Workers: h.workers.Snapshot(),
	})
}

type recentLogsResponse struct {
	OK   bool          `json:"ok"`
	Logs []logsink.Row `json:"logs"`
}

// RecentLogs returns the log ring, oldest first.
func (h *Handler) RecentLogs(w http.ResponseWriter, _ *http.Request) {
	rows := h.logs.Recent()
	if rows == nil {
		rows = []logsink.Row{}
	}
	respondJSON(w, http.StatusOK, recentLogsResponse{OK: true, Logs: rows})
}

type emitResponse struct {
	OK bool `json:"ok"`
	relay.Result
}

// Emit handles POST /internal/emit from workers.
func (h *Handler) Emit(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(relay.SecretHeader)

	var req relay.Request
	body := http.MaxBytesReader(w, r.Body, h.maxBody)
	// An unauthorized caller gets 401 even when its body is also malformed.
	if err := json.NewDecoder(body).Decode(&req); err != nil && h.relay.Authorize(token) == nil {
		respondError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := h.relay.Emit(r.Context(), req, token)
	switch {
	case errors.Is(err, relay.ErrUnauthorized):
		respondError(w, r, http.StatusUnauthorized, err.Error())
	case errors.Is(err, relay.ErrBadRequest):
		respondError(w, r, http.StatusBadRequest, err.Error())
	case err != nil:
		respondError(w, r, http.StatusInternalServerError, err.Error())
	default:
		respondJSON(w, http.StatusOK, emitResponse{OK: true, Result: res})
	}
}

type itemsResponse struct {
	OK    bool            `json:"ok"`
	Items json.RawMessage `json:"items"`
}

// Workspace serves GET /api/{accounts|roles|groups} from the workspace
// store. A missing file falls through to the default worker.
func (h *Handler) Workspace(resource string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.store == nil {
			h.Proxy(w, r)
			return
		}
		room := workspace.RoomFromRequest(r)
		items, err := h.store.Read(room, resource)
		switch {
		case err == nil:
			respondJSON(w, http.StatusOK, itemsResponse{OK: true, Items: items})
		case errors.Is(err, workspace.ErrNotFound):
			h.Proxy(w, r)
		default:
			logging.Ctx(r.Context()).Error().Err(err).
				Str("room", room).
				Str("resource", resource).
				Msg("Workspace file unreadable")
			respondError(w, r, http.StatusInternalServerError, err.Error())
		}
	}
}

// WebSocket upgrades to the realtime channel.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.realtime == nil {
		respondError(w, r, http.StatusServiceUnavailable, "realtime channel unavailable")
		return
	}
	h.realtime.ServeHTTP(w, r)
}

// NotFound answers unmatched non-API paths.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, r, http.StatusNotFound, "not found")
}

// MethodNotAllowed answers known paths hit with the wrong method.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}
