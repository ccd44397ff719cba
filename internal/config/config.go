// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...) initializer to build a Config with defaults.
// - All future functions must accept context.Context as the first parameter.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"context"
)

// Run modes for the process.
const (
	// ModeServe runs the HTTP API only.
	ModeServe = "serve"
	// ModeScore runs the background scoring engine only.
	ModeScore = "score"
	// ModeBoth runs the API and the scoring engine in one process.
	ModeBoth = "both"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Mode selects what the process runs: serve, score or both.
	Mode string `koanf:"mode"`

	// MasterData is the path of the contest master data file (YAML).
	MasterData string `koanf:"master_data"`

	// BootstrapOffsetMS, when positive, overrides the configured start
	// time with now plus the offset. Intended for local bootstrap runs.
	BootstrapOffsetMS int64 `koanf:"bootstrap_offset_ms"`

	// GeneratedUsers adds this many users with generated tokens on top
	// of the master data's seed users.
	GeneratedUsers int `koanf:"generated_users"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention; it is reserved for future use and is
// currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:   "info",
		Addr:       ":8080",
		Mode:       ModeBoth,
		MasterData: "masterdata.yaml",
	}
}
