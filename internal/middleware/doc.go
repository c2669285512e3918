// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

/*
Package middleware provides HTTP middleware components for the router.

All middleware uses the chi signature func(http.Handler) http.Handler so it can
be composed with r.Use in internal/api.

Key Components:

  - RequestID: honors an inbound X-Request-ID or generates a UUID, echoes it
    on the response and stores it in the logging context
  - PrometheusMetrics: request count, duration and in-flight gauge keyed by
    the chi route pattern
  - AccessLog: one structured zerolog line per completed request

Response writers are wrapped with chi's WrapResponseWriter, which preserves
http.Flusher and http.Hijacker. The proxy relies on Flush for streaming and
the websocket upgrade relies on Hijack.

Typical stack:

	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog)
	r.Use(middleware.PrometheusMetrics)
*/
package middleware
