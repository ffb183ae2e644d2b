// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers a YAML file and environment variables over the defaults.
// - Errors returned from Load wrap this package's sentinel kinds.
package config

import (
	"context"
	"runtime"
	"strings"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DBPath is the SQLite database file. Empty keeps the ledger in memory.
	DBPath string `koanf:"db_path"`

	// WeightsPath points at the rating weights file (yaml, json or toml).
	// Empty uses the built-in defaults.
	WeightsPath string `koanf:"weights_path"`

	// QueueSize bounds the re-aggregation job queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of aggregation workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize caps remembered client event ids.
	DedupeSize int `koanf:"dedupe_size"`

	// RedisAddr enables the distributed per-match lock when set.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	// LockTTLMS is how long a distributed lock lives before expiring.
	LockTTLMS int `koanf:"lock_ttl_ms"`

	// LockWaitMS bounds how long a writer waits for a match lock.
	LockWaitMS int `koanf:"lock_wait_ms"`

	// CORSOrigins is a comma separated allow list; "*" allows all.
	CORSOrigins string `koanf:"cors_origins"`

	// MaxBallPage caps GET /matches/{id}/balls?limit.
	MaxBallPage int `koanf:"max_ball_page"`
}

// New creates a Config populated with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:    "info",
		LogFormat:   "text",
		Addr:        ":9080",
		QueueSize:   10_000,
		WorkerCount: runtime.NumCPU(),
		DedupeSize:  100_000,
		LockTTLMS:   5_000,
		LockWaitMS:  2_000,
		CORSOrigins: "*",
		MaxBallPage: 500,
	}
}

// AllowedOrigins splits CORSOrigins into its entries.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
