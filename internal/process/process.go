// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"
)

// ErrEmptyCommand is returned when a Spec has no command.
var ErrEmptyCommand = errors.New("process command is empty")

// Spec describes a process to start.
type Spec struct {
	// Name identifies the process in logs.
	Name string

	Command string
	Args    []string

	// Dir is the working directory. Empty inherits the parent's.
	Dir string

	// Env is appended to the parent environment (KEY=VALUE entries).
	Env []string

	// LogPath, when set, receives stdout and stderr (appended).
	// Otherwise the child inherits the parent's stdio.
	LogPath string
}

// Handle is a running (or exited) child process.
type Handle interface {
	PID() int
	// Done is closed once the process has exited.
	Done() <-chan struct{}
	// ExitCode is valid after Done is closed; -1 when killed by a signal.
	ExitCode() int
	// Terminate sends SIGTERM, then SIGKILL after grace. It returns once the
	// process has exited.
	Terminate(grace time.Duration) error
}

// Spawner starts processes.
type Spawner interface {
	Spawn(spec Spec) (Handle, error)
}

// ExecSpawner starts real OS processes with os/exec.
type ExecSpawner struct{}

// NewExecSpawner creates a spawner backed by os/exec.
func NewExecSpawner() *ExecSpawner {
	return &ExecSpawner{}
}

// Spawn starts the process and begins waiting for it in the background.
func (s *ExecSpawner) Spawn(spec Spec) (Handle, error) {
	if spec.Command == "" {
		return nil, ErrEmptyCommand
	}

	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)

	var logFile *os.File
	if spec.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(spec.LogPath), 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(spec.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		logFile = f
		cmd.Stdout = f
		cmd.Stderr = f
	} else {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		closeQuietly(logFile)
		return nil, fmt.Errorf("start %s: %w", spec.Command, err)
	}

	h := &execHandle{
		cmd:      cmd,
		done:     make(chan struct{}),
		exitCode: -1,
	}
	go h.wait(logFile)
	return h, nil
}

type execHandle struct {
	cmd  *exec.Cmd
	done chan struct{}

	mu       sync.Mutex
	exitCode int
}

func (h *execHandle) wait(logFile *os.File) {
	_ = h.cmd.Wait() // exit status is read from ProcessState
	h.mu.Lock()
	if h.cmd.ProcessState != nil {
		h.exitCode = h.cmd.ProcessState.ExitCode()
	}
	h.mu.Unlock()
	closeQuietly(logFile)
	close(h.done)
}

func (h *execHandle) PID() int {
	return h.cmd.Process.Pid
}

func (h *execHandle) Done() <-chan struct{} {
	return h.done
}

func (h *execHandle) ExitCode() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode
}

func (h *execHandle) Terminate(grace time.Duration) error {
	select {
	case <-h.done:
		return nil
	default:
	}

	if err := h.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			<-h.done
			return nil
		}
		// SIGTERM unsupported (windows) or refused: go straight to kill
		return h.kill()
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-h.done:
		return nil
	case <-timer.C:
		return h.kill()
	}
}

func (h *execHandle) kill() error {
	if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill pid %d: %w", h.cmd.Process.Pid, err)
	}
	<-h.done
	return nil
}

func closeQuietly(f *os.File) {
	if f == nil {
		return
	}
	_ = f.Close()
}
