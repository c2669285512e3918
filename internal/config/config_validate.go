// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

package config

import (
	"fmt"

	"github.com/tomtom215/slotgate/internal/validation"
)

// Validate checks field constraints and builds the shard table once so that
// duplicate ids, duplicate ports and malformed bounds fail at startup.
// Overlapping ranges are allowed (first match wins); the caller logs them
// once logging is configured.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}

	if len(c.Shards) == 0 {
		return fmt.Errorf("at least one shard must be configured")
	}

	if _, err := c.ShardTable(); err != nil {
		return err
	}

	for i := range c.Shards {
		if int(c.Shards[i].Port) == c.Server.Port {
			return fmt.Errorf("shard %q port %d collides with HTTP_PORT", c.Shards[i].ID, c.Shards[i].Port)
		}
	}

	return nil
}
