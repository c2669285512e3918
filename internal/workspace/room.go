// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

package workspace

import (
	"net/http"
	"strings"
)

// DefaultRoom is used when a workspace identifier normalizes to nothing.
const DefaultRoom = "default"

// HeaderName carries the workspace when no query parameter is present.
const HeaderName = "X-Workspace"

// NormalizeRoom strips every character outside [A-Za-z0-9_-]. An empty
// result becomes DefaultRoom. The result is always safe as a path element.
func NormalizeRoom(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
			b.WriteByte(c)
		}
	}
	if b.Len() == 0 {
		return DefaultRoom
	}
	return b.String()
}

// RoomFromRequest reads ?ws=, then ?workspace=, then the X-Workspace header.
func RoomFromRequest(r *http.Request) string {
	q := r.URL.Query()
	raw := q.Get("ws")
	if raw == "" {
		raw = q.Get("workspace")
	}
	if raw == "" {
		raw = r.Header.Get(HeaderName)
	}
	return NormalizeRoom(raw)
}
