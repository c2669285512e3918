// Slotgate - Sharded Worker Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotgate

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/slotgate/internal/shard"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/slotgate/config.yaml",
	"/etc/slotgate/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
// Shards are not part of the struct defaults; see defaultShards.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              3000,
			Host:              "127.0.0.1",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Workers: WorkersConfig{
			Command:         "node",
			Args:            []string{"worker/index.js"},
			ConfigDir:       "config",
			DataDir:         "data",
			LogDir:          "logs",
			Prewarm:         0,
			StartTimeout:    25 * time.Second,
			PollInterval:    500 * time.Millisecond,
			ProbeTimeout:    1200 * time.Millisecond,
			KillGrace:       time.Second,
			BreakerFailures: 5,
			BreakerCooldown: 30 * time.Second,
			MaxConcurrency:  0,
		},
		Security: SecurityConfig{
			InternalSecret:    "",
			CORSOrigins:       []string{},
			RateLimitReqs:     600,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,

			EmitRateLimitReqs:   1200,
			EmitRateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		DataDir: "data",
	}
}

// defaultShards is the built-in two-shard table used when neither the
// config file nor SHARDS_JSON provides one.
func defaultShards() []shard.Spec {
	return []shard.Spec{
		{ID: "w1", Port: 3001, From: "A1", To: "A50", WorkDir: "work/w1"},
		{ID: "w2", Port: 3002, From: "A51", To: "A100", WorkDir: "work/w2"},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//
// SHARDS_JSON, when present, replaces the shard table after the layers are
// merged. The result is validated before it is returned.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := applyShardsJSON(cfg); err != nil {
		return nil, err
	}
	if len(cfg.Shards) == 0 {
		cfg.Shards = defaultShards()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyShardsJSON replaces cfg.Shards with the SHARDS_JSON array, if set.
func applyShardsJSON(cfg *Config) error {
	raw := strings.TrimSpace(cfg.Workers.ShardsJSON)
	if raw == "" {
		return nil
	}
	var specs []shard.Spec
	if err := json.Unmarshal([]byte(raw), &specs); err != nil {
		return fmt.Errorf("failed to parse SHARDS_JSON: %w", err)
	}
	cfg.Shards = specs
	return nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// fieldsConfigPaths are split on whitespace instead, so worker arguments
// may contain commas.
var fieldsConfigPaths = []string{
	"workers.args",
}

// processSliceFields converts string values to slices for known slice fields.
// This is necessary because env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	split := func(paths []string, fn func(string) []string) error {
		for _, path := range paths {
			strVal, ok := k.Get(path).(string)
			if !ok {
				// Absent, or already a slice from defaults or YAML.
				continue
			}
			parts := fn(strVal)
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				if p = strings.TrimSpace(p); p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
		return nil
	}

	if err := split(sliceConfigPaths, func(s string) []string { return strings.Split(s, ",") }); err != nil {
		return err
	}
	return split(fieldsConfigPaths, strings.Fields)
}

// envMappings maps environment variable names (lowercased) to koanf paths.
var envMappings = map[string]string{
	// Server mappings
	"http_port":             "server.port",
	"http_host":             "server.host",
	"http_shutdown_timeout": "server.shutdown_timeout",

	// Worker mappings
	"worker_command":          "workers.command",
	"worker_args":             "workers.args",
	"worker_config_dir":       "workers.config_dir",
	"worker_data_dir":         "workers.data_dir",
	"worker_log_dir":          "workers.log_dir",
	"worker_prewarm":          "workers.prewarm",
	"worker_start_timeout":    "workers.start_timeout",
	"worker_poll_interval":    "workers.poll_interval",
	"worker_probe_timeout":    "workers.probe_timeout",
	"worker_kill_grace":       "workers.kill_grace",
	"worker_breaker_failures": "workers.breaker_failures",
	"worker_breaker_cooldown": "workers.breaker_cooldown",
	"worker_max_concurrency":  "workers.max_concurrency",
	"shards_json":             "workers.shards_json",

	// Workspace data
	"data_dir": "data_dir",

	// Security mappings
	"internal_secret":     "security.internal_secret",
	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_requests",
	"rate_limit_window":   "security.rate_limit_window",
	"rate_limit_disabled": "security.rate_limit_disabled",

	"emit_rate_limit_requests": "security.emit_rate_limit_requests",
	"emit_rate_limit_window":   "security.emit_rate_limit_window",

	// Logging mappings
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - WORKER_START_TIMEOUT -> workers.start_timeout
//   - SHARDS_JSON -> workers.shards_json
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}

	// For unmapped keys, return empty string to skip them
	// This prevents random environment variables from polluting config
	return ""
}
