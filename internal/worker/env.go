// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

package worker

import (
	"path/filepath"
	"sort"
	"strconv"

	"github.com/tomtom215/slotgate/internal/process"
	"github.com/tomtom215/slotgate/internal/shard"
)

// processSpec builds the spawn description for a shard. Later Env entries
// win, so per-shard env overrides the global env which overrides the
// router-provided variables.
func (s *Supervisor) processSpec(d shard.Descriptor) process.Spec {
	env := []string{
		"PORT=" + strconv.Itoa(int(d.Port)),
		"WORKER_ID=" + d.ID,
		"SLOT_FROM=" + d.FromLabel(),
		"SLOT_TO=" + d.ToLabel(),
		"WORK_DIR=" + d.WorkDir,
		"CONFIG_DIR=" + s.opts.ConfigDir,
		"DATA_DIR=" + s.opts.DataDir,
		"MASTER_INTERNAL_URL=" + s.opts.InternalURL,
	}
	if s.opts.InternalSecret != "" {
		env = append(env, "INTERNAL_SECRET="+s.opts.InternalSecret)
	}
	if s.opts.MaxConcurrency > 0 {
		env = append(env, "MAX_CONCURRENCY="+strconv.Itoa(s.opts.MaxConcurrency))
	}
	env = appendSorted(env, s.opts.Env)
	env = appendSorted(env, d.Env)

	spec := process.Spec{
		Name:    d.ID,
		Command: s.opts.Command,
		Args:    s.opts.Args,
		Env:     env,
	}
	if s.opts.LogDir != "" {
		spec.LogPath = filepath.Join(s.opts.LogDir, d.ID+".log")
	}
	return spec
}

func appendSorted(env []string, extra map[string]string) []string {
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}
