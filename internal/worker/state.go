// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

package worker

import (
	"errors"
	"fmt"

	"github.com/tomtom215/slotgate/internal/metrics"
)

// State is a worker record's lifecycle state.
type State int

const (
	StateStopped  State = metrics.StateStopped
	StateStarting State = metrics.StateStarting
	StateRunning  State = metrics.StateRunning
	StateFailed   State = metrics.StateFailed
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrUnknownShard is returned for shard ids missing from the table.
	ErrUnknownShard = errors.New("unknown shard")

	// ErrStartTimeout means /health did not answer 200 before the deadline.
	ErrStartTimeout = errors.New("worker start timed out")

	// ErrSpawn means the process could not be started.
	ErrSpawn = errors.New("worker spawn failed")

	// ErrWorkerExited means the process exited before it became healthy.
	ErrWorkerExited = errors.New("worker exited during start")

	// ErrStartSuspended means the shard's start breaker is open.
	ErrStartSuspended = errors.New("worker starts suspended after repeated failures")

	// ErrSupervisorClosed is returned once Shutdown has begun.
	ErrSupervisorClosed = errors.New("worker supervisor is shut down")
)

// StartError carries the shard a failed start belongs to.
type StartError struct {
	ShardID string
	Err     error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("worker %s: %v", e.ShardID, e.Err)
}

func (e *StartError) Unwrap() error {
	return e.Err
}

// Status is a point-in-time view of one shard's worker.
type Status struct {
	ID      string `json:"id"`
	Port    uint16 `json:"port"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
	Running bool   `json:"running"`
	State   string `json:"state"`
	PID     int    `json:"pid,omitempty"`
	Adopted bool   `json:"adopted,omitempty"`
}
