// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

package shard

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrNoShard is the routing error: no shard can serve the request.
	ErrNoShard = errors.New("slot required for routing")

	// ErrInvalidTable indicates a malformed shard table.
	ErrInvalidTable = errors.New("invalid shard table")
)

// Spec is the configured form of a shard, before slot bounds are parsed.
type Spec struct {
	ID      string            `koanf:"id" json:"id" validate:"required"`
	Port    uint16            `koanf:"port" json:"port" validate:"required"`
	From    string            `koanf:"from" json:"from"`
	To      string            `koanf:"to" json:"to"`
	WorkDir string            `koanf:"work_dir" json:"workDir"`
	Env     map[string]string `koanf:"env" json:"env"`
}

// Descriptor is an immutable shard entry.
type Descriptor struct {
	ID      string
	Port    uint16
	From    *int
	To      *int
	WorkDir string
	Env     map[string]string
}

// Contains reports whether slot number n falls inside the shard's range.
func (d Descriptor) Contains(n int) bool {
	if d.From != nil && n < *d.From {
		return false
	}
	if d.To != nil && n > *d.To {
		return false
	}
	return true
}

// FromLabel renders the lower bound as a slot string, or "" when unbounded.
func (d Descriptor) FromLabel() string {
	return boundLabel(d.From)
}

// ToLabel renders the upper bound as a slot string, or "" when unbounded.
func (d Descriptor) ToLabel() string {
	return boundLabel(d.To)
}

func boundLabel(b *int) string {
	if b == nil {
		return ""
	}
	return "A" + strconv.Itoa(*b)
}

// Table is the ordered, immutable shard list.
type Table struct {
	shards []Descriptor
}

// NewTable parses specs into a table. IDs and ports must be unique and
// bounds, when present, must be slot strings with From <= To.
func NewTable(specs []Spec) (*Table, error) {
	seen := make(map[string]struct{}, len(specs))
	ports := make(map[uint16]string, len(specs))
	shards := make([]Descriptor, 0, len(specs))

	for i, s := range specs {
		if s.ID == "" {
			return nil, fmt.Errorf("%w: shard %d has no id", ErrInvalidTable, i)
		}
		if _, dup := seen[s.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate shard id %q", ErrInvalidTable, s.ID)
		}
		seen[s.ID] = struct{}{}

		if s.Port == 0 {
			return nil, fmt.Errorf("%w: shard %q has no port", ErrInvalidTable, s.ID)
		}
		// A shared port would let one worker answer another shard's probe.
		if other, dup := ports[s.Port]; dup {
			return nil, fmt.Errorf("%w: shards %q and %q share port %d", ErrInvalidTable, other, s.ID, s.Port)
		}
		ports[s.Port] = s.ID

		from, err := parseBound(s.From)
		if err != nil {
			return nil, fmt.Errorf("%w: shard %q from: %w", ErrInvalidTable, s.ID, err)
		}
		to, err := parseBound(s.To)
		if err != nil {
			return nil, fmt.Errorf("%w: shard %q to: %w", ErrInvalidTable, s.ID, err)
		}
		if from != nil && to != nil && *from > *to {
			return nil, fmt.Errorf("%w: shard %q range %s..%s is empty", ErrInvalidTable, s.ID, s.From, s.To)
		}

		env := make(map[string]string, len(s.Env))
		for k, v := range s.Env {
			env[k] = v
		}

		shards = append(shards, Descriptor{
			ID:      s.ID,
			Port:    s.Port,
			From:    from,
			To:      to,
			WorkDir: s.WorkDir,
			Env:     env,
		})
	}

	return &Table{shards: shards}, nil
}

func parseBound(s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	n, ok := ParseSlot(s)
	if !ok {
		return nil, fmt.Errorf("%q is not a slot", s)
	}
	return &n, nil
}

// Shards returns the descriptors in table order.
func (t *Table) Shards() []Descriptor {
	out := make([]Descriptor, len(t.shards))
	copy(out, t.shards)
	return out
}

// Len returns the number of shards.
func (t *Table) Len() int {
	return len(t.shards)
}

// Get returns the shard with the given id.
func (t *Table) Get(id string) (Descriptor, bool) {
	for _, d := range t.shards {
		if d.ID == id {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Default returns the first shard, the target of slot-agnostic requests.
func (t *Table) Default() (Descriptor, bool) {
	if len(t.shards) == 0 {
		return Descriptor{}, false
	}
	return t.shards[0], true
}

// Resolve returns the first shard in table order whose range contains slot.
func (t *Table) Resolve(slot string) (Descriptor, bool) {
	n, ok := ParseSlot(slot)
	if !ok {
		return Descriptor{}, false
	}
	for _, d := range t.shards {
		if d.Contains(n) {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Route picks the target shard for a request slot. An empty slot routes to
// the default shard; a slot that no shard contains is ErrNoShard.
func (t *Table) Route(slot string) (Descriptor, error) {
	if slot == "" {
		if d, ok := t.Default(); ok {
			return d, nil
		}
		return Descriptor{}, ErrNoShard
	}
	if d, ok := t.Resolve(slot); ok {
		return d, nil
	}
	return Descriptor{}, ErrNoShard
}

// Overlap names two shards whose ranges intersect.
type Overlap struct {
	First  string
	Second string
}

// Overlaps lists every pair of shards with intersecting ranges, in table order.
func (t *Table) Overlaps() []Overlap {
	var out []Overlap
	for i := 0; i < len(t.shards); i++ {
		for j := i + 1; j < len(t.shards); j++ {
			if intersects(t.shards[i], t.shards[j]) {
				out = append(out, Overlap{First: t.shards[i].ID, Second: t.shards[j].ID})
			}
		}
	}
	return out
}

func intersects(a, b Descriptor) bool {
	// a ends before b starts, or b ends before a starts
	if a.To != nil && b.From != nil && *a.To < *b.From {
		return false
	}
	if b.To != nil && a.From != nil && *b.To < *a.From {
		return false
	}
	return true
}
