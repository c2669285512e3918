// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

package logsink

import (
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/slotgate/internal/logging"
)

// DefaultCapacity is the number of rows retained by the ring.
const DefaultCapacity = 200

// Row levels.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Recorder is the write side of the sink, accepted by components that emit
// operational events.
type Recorder interface {
	Record(level, event string, fields map[string]any)
}

// Row is a single structured log entry.
// It serializes flat: {"timestamp":..., "level":..., "event":..., <fields>}.
type Row struct {
	Timestamp time.Time
	Level     string
	Event     string
	Fields    map[string]any
}

// MarshalJSON flattens Fields next to the fixed keys. Fixed keys win on collision.
func (r Row) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+3)
	for k, v := range r.Fields {
		out[k] = v
	}
	out["timestamp"] = r.Timestamp.UTC().Format(time.RFC3339Nano)
	out["level"] = r.Level
	out["event"] = r.Event
	return json.Marshal(out)
}

// Sink is a bounded ring of rows safe for concurrent use.
type Sink struct {
	mu       sync.Mutex
	rows     []Row
	start    int
	capacity int
	now      func() time.Time
}

// New creates a sink holding at most capacity rows.
// A non-positive capacity uses DefaultCapacity.
func New(capacity int) *Sink {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Sink{
		rows:     make([]Row, 0, capacity),
		capacity: capacity,
		now:      time.Now,
	}
}

// Record appends a row, evicting the oldest when full, and mirrors it to the
// process log stream.
func (s *Sink) Record(level, event string, fields map[string]any) {
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}

	s.mu.Lock()
	row := Row{Timestamp: s.now(), Level: level, Event: event, Fields: copied}
	if len(s.rows) < s.capacity {
		s.rows = append(s.rows, row)
	} else {
		s.rows[s.start] = row
		s.start = (s.start + 1) % s.capacity
	}
	s.mu.Unlock()

	logging.WithLevel(zerologLevel(level)).
		Str("event", event).
		Fields(copied).
		Msg(event)
}

// Recent returns a copy of the buffered rows, oldest first.
func (s *Sink) Recent() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Row, 0, len(s.rows))
	out = append(out, s.rows[s.start:]...)
	out = append(out, s.rows[:s.start]...)
	return out
}

// Len returns the number of buffered rows.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func zerologLevel(level string) zerolog.Level {
	switch level {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
