// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Context keys for logging.
type contextKey string

const (
	// requestIDKey is the context key for HTTP request IDs.
	requestIDKey contextKey = "request_id"

	// shardKey is the context key for the shard a request was routed to.
	shardKey contextKey = "shard"
)

// GenerateRequestID creates a new unique request ID.
func GenerateRequestID() string {
	return uuid.New().String()
}

// ContextWithRequestID returns a new context with the given request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if not present.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithShard records the shard a request was routed to.
func ContextWithShard(ctx context.Context, shardID string) context.Context {
	return context.WithValue(ctx, shardKey, shardID)
}

// ShardFromContext retrieves the routed shard ID from context.
func ShardFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(shardKey).(string); ok {
		return id
	}
	return ""
}

// Ctx returns a logger with context values (request_id, shard) added.
//
//	logging.Ctx(ctx).Info().Msg("Forwarding request")
func Ctx(ctx context.Context) *zerolog.Logger {
	logCtx := Logger().With()
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		logCtx = logCtx.Str("request_id", requestID)
	}
	if shardID := ShardFromContext(ctx); shardID != "" {
		logCtx = logCtx.Str("shard", shardID)
	}
	logger := logCtx.Logger()
	return &logger
}

// WithComponent creates a child logger with a component field.
//
//	hubLogger := logging.WithComponent("websocket-hub")
func WithComponent(component string) zerolog.Logger {
	return With().Str("component", component).Logger()
}
