// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/slotgate/internal/logging"
	"github.com/tomtom215/slotgate/internal/logsink"
	"github.com/tomtom215/slotgate/internal/metrics"
	"github.com/tomtom215/slotgate/internal/process"
	"github.com/tomtom215/slotgate/internal/shard"
)

// record is the supervisor's view of one shard. All fields below mu are
// guarded by it.
type record struct {
	desc    shard.Descriptor
	breaker *gobreaker.CircuitBreaker[struct{}]

	mu         sync.Mutex
	state      State
	handle     process.Handle // nil when stopped or adopted
	adopted    bool
	generation uint64
	// abort cancels the in-flight start of the current generation.
	abort context.CancelCauseFunc
}

// setState must be called with mu held.
func (r *record) setState(s State) {
	r.state = s
	metrics.SetWorkerState(r.desc.ID, int(s))
}

func (r *record) status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := Status{
		ID:      r.desc.ID,
		Port:    r.desc.Port,
		From:    r.desc.FromLabel(),
		To:      r.desc.ToLabel(),
		Running: r.state == StateRunning,
		State:   r.state.String(),
		Adopted: r.adopted,
	}
	if r.handle != nil {
		st.PID = r.handle.PID()
	}
	return st
}

// Supervisor owns one worker record per shard.
type Supervisor struct {
	table   *shard.Table
	opts    Options
	spawner process.Spawner
	sink    logsink.Recorder
	client  *http.Client

	records map[string]*record
	flights singleflight.Group

	// ctx bounds every start; cancelled by Shutdown.
	ctx    context.Context
	cancel context.CancelFunc

	// starts counts launches past their spawn gate; Shutdown waits for them.
	starts   sync.WaitGroup
	watchers sync.WaitGroup
	stopOnce sync.Once
}

// New creates a supervisor for every shard in table. Nothing is spawned
// until Ensure, Prewarm or Serve is called.
func New(table *shard.Table, opts Options, spawner process.Spawner, sink logsink.Recorder) *Supervisor {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Supervisor{
		table:   table,
		opts:    opts,
		spawner: spawner,
		sink:    sink,
		client:  newHealthClient(),
		records: make(map[string]*record, table.Len()),
		ctx:     ctx,
		cancel:  cancel,
	}

	for _, d := range table.Shards() {
		rec := &record{desc: d}
		rec.breaker = s.newBreaker(d.ID)
		metrics.SetWorkerState(d.ID, int(StateStopped))
		s.records[d.ID] = rec
	}
	return s
}

func (s *Supervisor) newBreaker(shardID string) *gobreaker.CircuitBreaker[struct{}] {
	metrics.SetBreakerState(shardID, 0)
	threshold := s.opts.BreakerFailures

	return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        shardID,
		MaxRequests: 1,                      // One probing start in half-open state
		Interval:    0,                      // Never clear counts while closed
		Timeout:     s.opts.BreakerCooldown, // Open -> half-open
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// Shutdown cancelling a start says nothing about the worker.
			return err == nil || errors.Is(err, ErrSupervisorClosed)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("shard", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Worker start breaker state transition")
			metrics.SetBreakerState(name, breakerStateValue(to))
		},
	})
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Ensure makes sure the shard's worker is running. Concurrent callers for
// the same shard share one start; ctx only bounds how long this caller
// waits.
func (s *Supervisor) Ensure(ctx context.Context, shardID string) (Status, error) {
	rec, ok := s.records[shardID]
	if !ok {
		return Status{}, &StartError{ShardID: shardID, Err: ErrUnknownShard}
	}

	rec.mu.Lock()
	running := rec.state == StateRunning
	rec.mu.Unlock()
	if running {
		return rec.status(), nil
	}

	ch := s.flights.DoChan(shardID, func() (interface{}, error) {
		return nil, s.start(rec)
	})

	select {
	case res := <-ch:
		return rec.status(), res.Err
	case <-ctx.Done():
		return rec.status(), ctx.Err()
	}
}

// start runs inside the shard's flight.
func (s *Supervisor) start(rec *record) error {
	rec.mu.Lock()
	running := rec.state == StateRunning
	rec.mu.Unlock()
	if running {
		return nil
	}

	if err := s.ctx.Err(); err != nil {
		return &StartError{ShardID: rec.desc.ID, Err: ErrSupervisorClosed}
	}

	_, err := rec.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, s.launch(rec)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.RecordWorkerStart(rec.desc.ID, "suspended")
		s.sink.Record(logsink.LevelWarn, "worker_start_suspended", map[string]any{
			"shard": rec.desc.ID,
		})
		return &StartError{ShardID: rec.desc.ID, Err: ErrStartSuspended}
	}
	return err
}

// launch adopts a healthy worker or spawns a new one and waits for it.
func (s *Supervisor) launch(rec *record) error {
	id := rec.desc.ID

	if s.probe(s.ctx, rec.desc.Port) {
		rec.mu.Lock()
		rec.adopted = rec.handle == nil
		rec.setState(StateRunning)
		pid := 0
		if rec.handle != nil {
			pid = rec.handle.PID()
		}
		rec.mu.Unlock()

		metrics.RecordWorkerStart(id, "adopted")
		s.sink.Record(logsink.LevelInfo, "worker_ready", map[string]any{
			"shard": id, "port": rec.desc.Port, "pid": pid, "adopted": true,
		})
		return nil
	}

	// A failed child that still has not become healthy is replaced so at
	// most one process serves the shard.
	rec.mu.Lock()
	stale := rec.handle
	rec.mu.Unlock()
	if stale != nil {
		logging.Warn().Str("shard", id).Int("pid", stale.PID()).Msg("Replacing unhealthy worker")
		if err := stale.Terminate(s.opts.KillGrace); err != nil {
			logging.Warn().Err(err).Str("shard", id).Msg("Failed to terminate unhealthy worker")
		}
	}

	startCtx, abort := context.WithCancelCause(s.ctx)
	defer abort(nil)

	// Shutdown cancels s.ctx before it visits each record under rec.mu, so
	// checking s.ctx under the same lock means every spawned child is
	// either seen by Shutdown or terminated here.
	rec.mu.Lock()
	if s.ctx.Err() != nil {
		rec.mu.Unlock()
		return &StartError{ShardID: id, Err: ErrSupervisorClosed}
	}
	s.starts.Add(1)
	defer s.starts.Done()
	rec.generation++
	gen := rec.generation
	rec.abort = abort
	rec.handle = nil
	rec.adopted = false
	rec.setState(StateStarting)
	rec.mu.Unlock()

	spec := s.processSpec(rec.desc)
	handle, err := s.spawner.Spawn(spec)
	if err != nil {
		rec.mu.Lock()
		if rec.generation == gen {
			rec.abort = nil
			rec.setState(StateFailed)
		}
		rec.mu.Unlock()

		metrics.RecordWorkerStart(id, "spawn_error")
		s.sink.Record(logsink.LevelError, "worker_spawn_failed", map[string]any{
			"shard": id, "command": spec.Command, "error": err.Error(),
		})
		return &StartError{ShardID: id, Err: fmt.Errorf("%w: %w", ErrSpawn, err)}
	}

	rec.mu.Lock()
	if s.ctx.Err() != nil {
		if rec.generation == gen {
			rec.abort = nil
			rec.setState(StateStopped)
		}
		rec.mu.Unlock()
		s.terminateOrphan(id, handle)
		return &StartError{ShardID: id, Err: ErrSupervisorClosed}
	}
	rec.handle = handle
	// Added under rec.mu so it happens before Shutdown waits on watchers.
	s.watchers.Add(1)
	rec.mu.Unlock()
	s.watch(rec, handle, gen)

	s.sink.Record(logsink.LevelInfo, "worker_spawned", map[string]any{
		"shard": id, "port": rec.desc.Port, "pid": handle.PID(), "log": spec.LogPath,
	})

	began := time.Now()
	waitCtx, cancel := context.WithTimeout(startCtx, s.opts.StartTimeout)
	err = s.waitHealthy(waitCtx, rec.desc.Port)
	cancel()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	current := rec.generation == gen && rec.handle == handle
	if current {
		rec.abort = nil
	}

	switch {
	case err == nil && current:
		rec.setState(StateRunning)
		metrics.RecordWorkerStart(id, "ready")
		metrics.RecordWorkerReady(id, time.Since(began))
		s.sink.Record(logsink.LevelInfo, "worker_ready", map[string]any{
			"shard": id, "port": rec.desc.Port, "pid": handle.PID(),
			"elapsed_ms": time.Since(began).Milliseconds(),
		})
		return nil

	case errors.Is(context.Cause(startCtx), ErrWorkerExited) || (err == nil && !current):
		metrics.RecordWorkerStart(id, "exited")
		s.sink.Record(logsink.LevelError, "worker_start_failed", map[string]any{
			"shard": id, "reason": "exited", "exit_code": handle.ExitCode(),
		})
		return &StartError{ShardID: id, Err: ErrWorkerExited}

	case s.ctx.Err() != nil:
		return &StartError{ShardID: id, Err: ErrSupervisorClosed}

	default:
		if current {
			rec.setState(StateFailed)
		}
		metrics.RecordWorkerStart(id, "timeout")
		s.sink.Record(logsink.LevelError, "worker_start_failed", map[string]any{
			"shard": id, "reason": "timeout", "timeout_ms": s.opts.StartTimeout.Milliseconds(),
			"pid": handle.PID(),
		})
		return &StartError{ShardID: id, Err: ErrStartTimeout}
	}
}

// terminateOrphan stops a child spawned after Shutdown began.
func (s *Supervisor) terminateOrphan(id string, handle process.Handle) {
	if err := handle.Terminate(s.opts.KillGrace); err != nil {
		logging.Error().Err(err).Str("shard", id).Int("pid", handle.PID()).Msg("Failed to terminate worker spawned during shutdown")
		return
	}
	s.sink.Record(logsink.LevelInfo, "worker_stopped", map[string]any{"shard": id, "pid": handle.PID()})
}

// watch resets the record when handle exits, unless a newer process has
// replaced it in the meantime. The caller has already counted it in
// s.watchers.
func (s *Supervisor) watch(rec *record, handle process.Handle, gen uint64) {
	go func() {
		defer s.watchers.Done()
		<-handle.Done()

		rec.mu.Lock()
		current := rec.handle == handle
		if current {
			if rec.generation == gen && rec.abort != nil {
				rec.abort(ErrWorkerExited)
				rec.abort = nil
			}
			rec.handle = nil
			rec.adopted = false
			rec.setState(StateStopped)
		}
		rec.mu.Unlock()

		metrics.RecordWorkerExit(rec.desc.ID)
		s.sink.Record(logsink.LevelWarn, "worker_exit", map[string]any{
			"shard": rec.desc.ID, "pid": handle.PID(), "exit_code": handle.ExitCode(), "current": current,
		})
	}()
}

// Invalidate forgets an adopted worker after an upstream connection
// failure so the next Ensure probes or spawns again. Workers the supervisor
// spawned are tracked by their exit watcher instead. Reports whether the
// record changed.
func (s *Supervisor) Invalidate(shardID string) bool {
	rec, ok := s.records[shardID]
	if !ok {
		return false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.state != StateRunning || rec.handle != nil {
		return false
	}
	rec.adopted = false
	rec.setState(StateStopped)
	logging.Info().Str("shard", shardID).Msg("Adopted worker unreachable; marked stopped")
	return true
}

// Prewarm starts the first n shards concurrently. Failures are logged and
// never returned.
func (s *Supervisor) Prewarm(ctx context.Context, n int) {
	shards := s.table.Shards()
	if n > len(shards) {
		n = len(shards)
	}
	if n <= 0 {
		return
	}

	var g errgroup.Group
	for _, d := range shards[:n] {
		g.Go(func() error {
			if _, err := s.Ensure(ctx, d.ID); err != nil {
				logging.Warn().Err(err).Str("shard", d.ID).Msg("Prewarm failed")
			}
			return nil
		})
	}
	_ = g.Wait() // goroutines never return errors
}

// Snapshot lists every shard's status in table order.
func (s *Supervisor) Snapshot() []Status {
	shards := s.table.Shards()
	out := make([]Status, 0, len(shards))
	for _, d := range shards {
		out = append(out, s.records[d.ID].status())
	}
	return out
}

// Shutdown aborts in-flight starts and terminates every live child
// (SIGTERM, then SIGKILL after KillGrace). It is safe to call more than once.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	// Cancel before visiting records; launch relies on this order.
	s.stopOnce.Do(s.cancel)

	var wg sync.WaitGroup
	for _, d := range s.table.Shards() {
		rec := s.records[d.ID]
		rec.mu.Lock()
		handle := rec.handle
		rec.mu.Unlock()
		if handle == nil {
			continue
		}

		wg.Add(1)
		go func(id string, h process.Handle) {
			defer wg.Done()
			if err := h.Terminate(s.opts.KillGrace); err != nil {
				logging.Error().Err(err).Str("shard", id).Msg("Failed to terminate worker")
				return
			}
			s.sink.Record(logsink.LevelInfo, "worker_stopped", map[string]any{"shard": id, "pid": h.PID()})
		}(d.ID, handle)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		s.starts.Wait()
		s.watchers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker shutdown: %w", ctx.Err())
	}
}

// Serve implements suture.Service.
func (s *Supervisor) Serve(ctx context.Context) error {
	logging.Info().
		Int("shards", s.table.Len()).
		Int("prewarm", s.opts.Prewarm).
		Msg("Worker supervisor started")

	go s.Prewarm(ctx, s.opts.Prewarm)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.KillGrace+5*time.Second)
	defer cancel()
	// Info on a clean stop, error when children outlived the deadline.
	logging.Err(s.Shutdown(shutdownCtx)).Msg("Worker supervisor stopped")
	return ctx.Err()
}

// String implements fmt.Stringer for suture logging.
func (s *Supervisor) String() string {
	return "worker-supervisor"
}
