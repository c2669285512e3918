// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/tomtom215/slotgate/internal/logging"
	"github.com/tomtom215/slotgate/internal/shard"
)

// Config holds all application configuration. It is read once at startup.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Workers  WorkersConfig  `koanf:"workers"`
	Shards   []shard.Spec   `koanf:"shards" validate:"dive"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`

	// DataDir is the root of the workspace passthrough files.
	DataDir string `koanf:"data_dir" validate:"required"`
}

// ServerConfig holds the router's own HTTP listener settings.
type ServerConfig struct {
	Port              int           `koanf:"port" validate:"min=1,max=65535"`
	Host              string        `koanf:"host"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout" validate:"gte=0"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// WorkersConfig holds worker process settings shared by every shard.
type WorkersConfig struct {
	Command   string   `koanf:"command" validate:"required"`
	Args      []string `koanf:"args"`
	ConfigDir string   `koanf:"config_dir"`
	DataDir   string   `koanf:"data_dir"`
	// LogDir receives <shard>.log per worker; empty inherits stdio.
	LogDir string `koanf:"log_dir"`

	Prewarm         int           `koanf:"prewarm" validate:"min=0"`
	StartTimeout    time.Duration `koanf:"start_timeout" validate:"gt=0"`
	PollInterval    time.Duration `koanf:"poll_interval" validate:"gt=0"`
	ProbeTimeout    time.Duration `koanf:"probe_timeout" validate:"gt=0"`
	KillGrace       time.Duration `koanf:"kill_grace" validate:"gte=0"`
	BreakerFailures uint32        `koanf:"breaker_failures" validate:"min=1"`
	BreakerCooldown time.Duration `koanf:"breaker_cooldown" validate:"gt=0"`

	// MaxConcurrency is exported to workers as MAX_CONCURRENCY when > 0.
	MaxConcurrency int `koanf:"max_concurrency" validate:"min=0"`

	// Env is merged into every worker's environment before per-shard env.
	Env map[string]string `koanf:"env" validate:"dive,keys,envkey,endkeys"`

	// ShardsJSON, when set, replaces the shard table with a JSON array.
	ShardsJSON string `koanf:"shards_json"`
}

// SecurityConfig holds the shared secret and HTTP guard settings.
type SecurityConfig struct {
	// InternalSecret guards /internal/emit and is passed to workers.
	// Empty disables the check.
	InternalSecret    string        `koanf:"internal_secret"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_requests" validate:"min=1"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	// EmitRateLimitReqs bounds POST /internal/emit per caller IP. Workers
	// share the loopback address, so this is a budget for all of them.
	// Zero disables the emit limit only.
	EmitRateLimitReqs   int           `koanf:"emit_rate_limit_requests" validate:"min=0"`
	EmitRateLimitWindow time.Duration `koanf:"emit_rate_limit_window" validate:"gt=0"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// ListenAddr returns the host:port the router binds.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// InternalURL is the callback base URL handed to workers.
func (c *Config) InternalURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", c.Server.Port)
}

// ShardTable builds the routing table from the configured shards.
func (c *Config) ShardTable() (*shard.Table, error) {
	return shard.NewTable(c.Shards)
}

// ToLogging converts to the logging package's configuration.
func (l LoggingConfig) ToLogging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = l.Level
	cfg.Format = l.Format
	cfg.Caller = l.Caller
	return cfg
}
