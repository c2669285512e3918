// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

package process

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func requireShell(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return sh
}

func TestExecSpawner_EmptyCommand(t *testing.T) {
	t.Parallel()

	if _, err := NewExecSpawner().Spawn(Spec{}); !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("expected ErrEmptyCommand, got %v", err)
	}
}

func TestExecSpawner_MissingBinary(t *testing.T) {
	t.Parallel()

	_, err := NewExecSpawner().Spawn(Spec{Command: "/nonexistent/slotgate-worker"})
	if err == nil {
		t.Fatal("expected spawn error for missing binary")
	}
}

func TestExecSpawner_ExitCodeAndLogFile(t *testing.T) {
	t.Parallel()
	sh := requireShell(t)

	logPath := filepath.Join(t.TempDir(), "logs", "w1.log")
	h, err := NewExecSpawner().Spawn(Spec{
		Name:    "w1",
		Command: sh,
		Args:    []string{"-c", `echo "port=$PORT"; exit 3`},
		Env:     []string{"PORT=3101"},
		LogPath: logPath,
	})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if h.PID() <= 0 {
		t.Errorf("expected positive pid, got %d", h.PID())
	}

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}

	if code := h.ExitCode(); code != 3 {
		t.Errorf("expected exit code 3, got %d", code)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "port=3101") {
		t.Errorf("expected env to reach child, log: %q", data)
	}
}

func TestExecSpawner_TerminateGraceful(t *testing.T) {
	t.Parallel()
	sh := requireShell(t)

	h, err := NewExecSpawner().Spawn(Spec{Command: sh, Args: []string{"-c", "exec sleep 30"}})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	start := time.Now()
	if err := h.Terminate(5 * time.Second); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 4*time.Second {
		t.Errorf("SIGTERM should stop sleep quickly, took %v", elapsed)
	}
	select {
	case <-h.Done():
	default:
		t.Error("Done should be closed after Terminate returns")
	}
}

func TestExecSpawner_TerminateEscalatesToKill(t *testing.T) {
	t.Parallel()
	sh := requireShell(t)

	h, err := NewExecSpawner().Spawn(Spec{
		Command: sh,
		Args:    []string{"-c", `trap "" TERM; while true; do sleep 0.1; done`},
	})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	// give the shell time to install the trap
	time.Sleep(200 * time.Millisecond)

	if err := h.Terminate(300 * time.Millisecond); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if code := h.ExitCode(); code != -1 {
		t.Errorf("expected -1 for signal-killed process, got %d", code)
	}
}

func TestExecSpawner_TerminateAfterExit(t *testing.T) {
	t.Parallel()
	sh := requireShell(t)

	h, err := NewExecSpawner().Spawn(Spec{Command: sh, Args: []string{"-c", "exit 0"}})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	<-h.Done()

	if err := h.Terminate(time.Second); err != nil {
		t.Errorf("terminate after exit should be a no-op, got %v", err)
	}
	if code := h.ExitCode(); code != 0 {
		t.Errorf("expected exit code 0, got %d", code)
	}
}
