// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

package proxy

import "context"

type parsedBodyKey struct{}

// WithParsedBody attaches a decoded JSON request body to ctx.
func WithParsedBody(ctx context.Context, body any) context.Context {
	return context.WithValue(ctx, parsedBodyKey{}, parsedBody{value: body})
}

// ParsedBody returns the body attached by WithParsedBody.
func ParsedBody(ctx context.Context) (any, bool) {
	pb, ok := ctx.Value(parsedBodyKey{}).(parsedBody)
	return pb.value, ok
}

// parsedBody wraps the value so a JSON null is distinguishable from "not parsed".
type parsedBody struct {
	value any
}
