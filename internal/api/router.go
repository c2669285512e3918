// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/slotgate/internal/middleware"
	"github.com/tomtom215/slotgate/internal/proxy"
	"github.com/tomtom215/slotgate/internal/relay"
	"github.com/tomtom215/slotgate/internal/shard"
	"github.com/tomtom215/slotgate/internal/workspace"
)

// DefaultMaxBodyBytes bounds request bodies the router reads itself.
const DefaultMaxBodyBytes = 10 << 20

// Dependencies wires the router to the rest of the process.
type Dependencies struct {
	Table     *shard.Table
	Workers   Workers
	Forwarder *proxy.Forwarder
	Relay     *relay.Relay
	Store     *workspace.Store
	Logs      LogSource
	// Realtime serves /ws and /socket; nil answers 503.
	Realtime http.Handler

	MasterPort   int
	MaxBodyBytes int64
	Middleware   *ChiMiddlewareConfig
}

// Router owns the handler set and the middleware factories.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter builds the router. The forwarder's error rendering and upstream
// failure hook are pointed at this package.
func NewRouter(deps Dependencies) *Router {
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = DefaultMaxBodyBytes
	}

	h := &Handler{
		table:      deps.Table,
		workers:    deps.Workers,
		forwarder:  deps.Forwarder,
		relay:      deps.Relay,
		store:      deps.Store,
		logs:       deps.Logs,
		realtime:   deps.Realtime,
		masterPort: deps.MasterPort,
		maxBody:    deps.MaxBodyBytes,
	}

	deps.Forwarder.WriteError = respondError
	deps.Forwarder.OnUpstreamError = func(_ *http.Request, d shard.Descriptor, _ error) {
		h.workers.Invalidate(d.ID)
	}

	return &Router{
		handler:       h,
		chiMiddleware: NewChiMiddleware(deps.Middleware),
	}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()
	h := router.handler

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.AccessLog)
	r.Use(middleware.PrometheusMetrics)
	r.Use(Recoverer)
	r.Use(router.chiMiddleware.CORS()) // global so OPTIONS preflight is answered

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	// ========================
	// Router-local endpoints (never proxied)
	// ========================
	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/ws", h.WebSocket)
	r.Get("/socket", h.WebSocket)

	r.With(router.chiMiddleware.RateLimitEmit()).Post("/internal/emit", h.Emit)

	// ========================
	// API
	// ========================
	r.Route("/api", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())

		// Router-served reads; other methods on these paths go to a worker.
		r.HandleFunc("/system/recentLogs", h.getOrProxy(h.RecentLogs))
		r.HandleFunc("/accounts", h.getOrProxy(h.Workspace(workspace.ResourceAccounts)))
		r.HandleFunc("/roles", h.getOrProxy(h.Workspace(workspace.ResourceRoles)))
		r.HandleFunc("/groups", h.getOrProxy(h.Workspace(workspace.ResourceGroups)))

		// Everything else belongs to a worker.
		r.HandleFunc("/*", h.Proxy)
	})

	return r
}
