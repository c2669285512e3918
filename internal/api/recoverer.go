// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

package api

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/tomtom215/slotgate/internal/logging"
)

// Recoverer turns a handler panic into a 500 JSON envelope. The stack goes to
// the log, never to the client. http.ErrAbortHandler is re-raised so the
// server aborts the connection as intended.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel compared by identity
				panic(rec)
			}

			logging.Ctx(r.Context()).Error().
				Str("panic", fmt.Sprint(rec)).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Bytes("stack", debug.Stack()).
				Msg("Recovered from handler panic")

			// Upgraded connections have no response to write.
			if r.Header.Get("Connection") == "Upgrade" {
				return
			}
			respondError(w, r, http.StatusInternalServerError, "internal error")
		}()

		next.ServeHTTP(w, r)
	})
}
