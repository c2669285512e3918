// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/spf13/afero"
)

// Resources served by the passthrough endpoints.
const (
	ResourceAccounts = "accounts"
	ResourceRoles    = "roles"
	ResourceGroups   = "groups"
)

var (
	// ErrNotFound means the workspace has no file for the resource; callers
	// fall through to the default worker.
	ErrNotFound = errors.New("workspace resource not found")

	// ErrMalformed means the file exists but is not valid JSON.
	ErrMalformed = errors.New("workspace resource is malformed")

	// ErrUnknownResource rejects anything outside the served set.
	ErrUnknownResource = errors.New("unknown workspace resource")
)

var resources = map[string]struct{}{
	ResourceAccounts: {},
	ResourceRoles:    {},
	ResourceGroups:   {},
}

// Store reads workspace JSON files from an afero filesystem.
type Store struct {
	fs   afero.Fs
	root string
}

// NewStore creates a store rooted at <dataDir>/workspaces.
func NewStore(fs afero.Fs, dataDir string) *Store {
	return &Store{fs: fs, root: filepath.Join(dataDir, "workspaces")}
}

// NewOSStore creates a store on the real filesystem.
func NewOSStore(dataDir string) *Store {
	return NewStore(afero.NewOsFs(), dataDir)
}

// Path returns the file backing room/resource.
func (s *Store) Path(room, resource string) string {
	return filepath.Join(s.root, NormalizeRoom(room), resource+".json")
}

// Read returns the raw JSON of room/resource after checking it parses.
func (s *Store) Read(room, resource string) (json.RawMessage, error) {
	if _, ok := resources[resource]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownResource, resource)
	}

	path := s.Path(room, resource)
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, path)
	}
	return json.RawMessage(data), nil
}
