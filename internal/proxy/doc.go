// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

// Package proxy forwards HTTP requests to a shard's worker on the loopback
// interface and streams the response back.
//
// The upstream status code and headers are mirrored and the body is copied
// with a flush after every chunk, so long-polling and chunked worker
// responses reach the client as they are produced. Redirects are returned
// to the client, never followed.
//
// When the router had to parse a JSON body to find the routing slot, the
// parsed value is attached with WithParsedBody and re-serialized here with
// an exact Content-Length. Any other body is streamed through untouched.
package proxy
