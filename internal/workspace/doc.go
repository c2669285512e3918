// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

// Package workspace normalizes workspace room identifiers and serves the
// per-workspace flat JSON files read by the passthrough endpoints.
//
// Files live at <data_dir>/workspaces/<room>/<resource>.json. The store is
// backed by an afero.Fs so tests run against an in-memory filesystem.
package workspace
