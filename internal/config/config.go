// Package config provides configuration management for runproc.
package config

import (
	"time"

	"github.com/randomizedcoder/runproc/internal/process"
)

// Config holds all configuration options for a runproc invocation.
type Config struct {
	// Process
	Path string            `json:"path"`
	Args []string          `json:"args"`
	Dir  string            `json:"dir"`
	Env  map[string]string `json:"env"`
	User string            `json:"user"`

	// Cancellation
	Timeout     time.Duration `json:"timeout"` // 0 = none
	GracePeriod time.Duration `json:"grace_period"`

	// Swarm
	Runs       int           `json:"runs"`
	Parallel   int           `json:"parallel"`
	RampRate   int           `json:"ramp_rate"` // 0 = start as fast as parallelism allows
	RampJitter time.Duration `json:"ramp_jitter"`

	// Observability
	MetricsAddr string `json:"metrics_addr"` // empty = disabled
	LogFormat   string `json:"log_format"`   // json, text
	LogLevel    string `json:"log_level"`
	Verbose     bool   `json:"verbose"`
	TUIEnabled  bool   `json:"tui_enabled"`
	Quiet       bool   `json:"quiet"`

	// Diagnostic modes
	PrintCmd      bool   `json:"print_cmd"`
	Check         bool   `json:"check"`
	SkipPreflight bool   `json:"skip_preflight"`
	JobFile       string `json:"job_file"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		GracePeriod: process.DefaultGracePeriod,

		Runs:       1,
		Parallel:   1,
		RampRate:   0,
		RampJitter: 0,

		MetricsAddr: "",
		LogFormat:   "text",
		LogLevel:    "info",
	}
}

// IsSwarm reports whether more than one run was requested.
func (c *Config) IsSwarm() bool {
	return c.Runs > 1
}

// ProcessSpec builds the launch description for one run.
func (c *Config) ProcessSpec() process.Spec {
	spec := process.Spec{
		Path: c.Path,
		Args: c.Args,
		Dir:  c.Dir,
		Env:  c.Env,
	}
	if c.User != "" {
		spec.Credential = &process.Credential{Username: c.User}
	}
	return spec
}
