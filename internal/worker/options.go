// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

package worker

import "time"

// Options configures the supervisor.
type Options struct {
	Command   string
	Args      []string
	ConfigDir string
	DataDir   string
	// LogDir receives <shard>.log; empty inherits the router's stdio.
	LogDir string

	// InternalURL is exported as MASTER_INTERNAL_URL.
	InternalURL    string
	InternalSecret string
	MaxConcurrency int

	// Env is applied to every worker, before the shard's own env.
	Env map[string]string

	// Prewarm is the number of leading shards started by Serve.
	Prewarm int

	StartTimeout time.Duration
	PollInterval time.Duration
	ProbeTimeout time.Duration
	KillGrace    time.Duration

	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// DefaultOptions returns the production timing defaults.
func DefaultOptions() Options {
	return Options{
		StartTimeout:    25 * time.Second,
		PollInterval:    500 * time.Millisecond,
		ProbeTimeout:    1200 * time.Millisecond,
		KillGrace:       time.Second,
		BreakerFailures: 5,
		BreakerCooldown: 30 * time.Second,
	}
}

// withDefaults fills zero timings so a partially populated Options works.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.StartTimeout <= 0 {
		o.StartTimeout = d.StartTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = d.ProbeTimeout
	}
	if o.KillGrace < 0 {
		o.KillGrace = d.KillGrace
	}
	if o.BreakerFailures == 0 {
		o.BreakerFailures = d.BreakerFailures
	}
	if o.BreakerCooldown <= 0 {
		o.BreakerCooldown = d.BreakerCooldown
	}
	return o
}
