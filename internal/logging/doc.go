// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

// Package logging provides centralized zerolog-based structured logging for Slotgate.
//
// # Quick Start
//
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	logging.Info().Str("shard", "w1").Int("port", 3101).Msg("Worker ready")
//	logging.Error().Err(err).Msg("Worker start failed")
//
//	// Request-scoped logging (request_id, shard)
//	logging.Ctx(r.Context()).Warn().Msg("Upstream unreachable")
//
// # Configuration
//
// Environment Variables (read by internal/config):
//
//	LOG_LEVEL   - Minimum log level: trace, debug, info, warn, error (default: info)
//	LOG_FORMAT  - Output format: json, console (default: json)
//	LOG_CALLER  - Include caller file:line (default: false)
//
// # Structured Logging Best Practices
//
// Always terminate log chains with .Msg() or .Send():
//
//	logging.Info().Str("key", "value").Msg("message")  // Correct
//	logging.Info().Str("key", "value")                 // WRONG - log not emitted
//
// # slog Adapter
//
// The suture supervisor tree reports service events through sutureslog, which
// requires *slog.Logger. NewSlogLogger bridges those records into zerolog so
// there is a single process log stream.
package logging
