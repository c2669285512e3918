// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

package main

import (
	"fmt"
	"net/http"

	"github.com/tomtom215/slotgate/internal/api"
	"github.com/tomtom215/slotgate/internal/config"
	"github.com/tomtom215/slotgate/internal/logging"
	"github.com/tomtom215/slotgate/internal/logsink"
	"github.com/tomtom215/slotgate/internal/process"
	"github.com/tomtom215/slotgate/internal/proxy"
	"github.com/tomtom215/slotgate/internal/relay"
	"github.com/tomtom215/slotgate/internal/shard"
	"github.com/tomtom215/slotgate/internal/supervisor"
	"github.com/tomtom215/slotgate/internal/supervisor/services"
	"github.com/tomtom215/slotgate/internal/websocket"
	"github.com/tomtom215/slotgate/internal/worker"
	"github.com/tomtom215/slotgate/internal/workspace"
)

// recentLogCapacity is the size of the /api/system/recentLogs ring.
const recentLogCapacity = 200

// app is the fully wired process, before anything is started.
type app struct {
	cfg     *config.Config
	table   *shard.Table
	sink    *logsink.Sink
	workers *worker.Supervisor
	hub     *websocket.Hub
	relay   *relay.Relay
	server  *http.Server
}

func newApp(cfg *config.Config) (*app, error) {
	return newAppWithSpawner(cfg, process.NewExecSpawner())
}

func newAppWithSpawner(cfg *config.Config, spawner process.Spawner) (*app, error) {
	table, err := cfg.ShardTable()
	if err != nil {
		return nil, fmt.Errorf("shard table: %w", err)
	}
	for _, o := range table.Overlaps() {
		logging.Warn().
			Str("first", o.First).
			Str("second", o.Second).
			Msg("Shard slot ranges overlap; the first shard in table order wins")
	}

	sink := logsink.New(recentLogCapacity)
	workers := worker.New(table, workerOptions(cfg), spawner, sink)

	hub := websocket.NewHub()
	rl := relay.New(hub, cfg.Security.InternalSecret, sink)

	router := api.NewRouter(api.Dependencies{
		Table:      table,
		Workers:    workers,
		Forwarder:  proxy.New(),
		Relay:      rl,
		Store:      workspace.NewOSStore(cfg.DataDir),
		Logs:       sink,
		Realtime:   websocket.NewHandler(hub, cfg.Security.CORSOrigins),
		MasterPort: cfg.Server.Port,
		Middleware: middlewareConfig(cfg),
	})

	server := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	return &app{
		cfg:     cfg,
		table:   table,
		sink:    sink,
		workers: workers,
		hub:     hub,
		relay:   rl,
		server:  server,
	}, nil
}

// register adds every long-lived component to its layer.
func (a *app) register(tree *supervisor.SupervisorTree) {
	tree.AddWorkerService(a.workers)
	tree.AddMessagingService(services.NewWebSocketHubService(a.hub))
	tree.AddAPIService(services.NewHTTPServerService(a.server, a.server.Addr, a.cfg.Server.ShutdownTimeout))
}

func workerOptions(cfg *config.Config) worker.Options {
	w := cfg.Workers
	return worker.Options{
		Command:         w.Command,
		Args:            w.Args,
		ConfigDir:       w.ConfigDir,
		DataDir:         w.DataDir,
		LogDir:          w.LogDir,
		InternalURL:     cfg.InternalURL(),
		InternalSecret:  cfg.Security.InternalSecret,
		MaxConcurrency:  w.MaxConcurrency,
		Env:             w.Env,
		Prewarm:         w.Prewarm,
		StartTimeout:    w.StartTimeout,
		PollInterval:    w.PollInterval,
		ProbeTimeout:    w.ProbeTimeout,
		KillGrace:       w.KillGrace,
		BreakerFailures: w.BreakerFailures,
		BreakerCooldown: w.BreakerCooldown,
	}
}

func middlewareConfig(cfg *config.Config) *api.ChiMiddlewareConfig {
	mw := api.DefaultChiMiddlewareConfig()
	mw.CORSAllowedOrigins = cfg.Security.CORSOrigins
	mw.RateLimitRequests = cfg.Security.RateLimitReqs
	mw.RateLimitWindow = cfg.Security.RateLimitWindow
	mw.RateLimitDisabled = cfg.Security.RateLimitDisabled
	mw.EmitRateLimitRequests = cfg.Security.EmitRateLimitReqs
	mw.EmitRateLimitWindow = cfg.Security.EmitRateLimitWindow
	return mw
}
