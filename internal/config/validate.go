package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/randomizedcoder/runproc/internal/logging"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// All problems are reported together via errors.Join.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Path == "" {
		errs = append(errs, ValidationError{
			Field:   "path",
			Message: "executable path is required",
		})
	}

	for k := range cfg.Env {
		if k == "" || strings.ContainsAny(k, "=\x00") {
			errs = append(errs, ValidationError{
				Field:   "env",
				Message: fmt.Sprintf("invalid variable name %q", k),
			})
		}
	}

	if cfg.Timeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "timeout",
			Message: "must not be negative",
		})
	}

	if cfg.GracePeriod <= 0 {
		errs = append(errs, ValidationError{
			Field:   "grace_period",
			Message: "must be positive",
		})
	}

	if cfg.Runs < 1 {
		errs = append(errs, ValidationError{
			Field:   "runs",
			Message: "must be at least 1",
		})
	}

	if cfg.Parallel < 1 {
		errs = append(errs, ValidationError{
			Field:   "parallel",
			Message: "must be at least 1",
		})
	}

	if cfg.RampRate < 0 {
		errs = append(errs, ValidationError{
			Field:   "ramp_rate",
			Message: "must not be negative",
		})
	}

	if cfg.RampJitter < 0 {
		errs = append(errs, ValidationError{
			Field:   "ramp_jitter",
			Message: "must not be negative",
		})
	}

	if cfg.LogFormat != logging.FormatJSON && cfg.LogFormat != logging.FormatText {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be json or text (got %q)", cfg.LogFormat),
		})
	}

	if !logging.ValidLevel(cfg.LogLevel) {
		errs = append(errs, ValidationError{
			Field:   "log_level",
			Message: fmt.Sprintf("must be one of: debug, info, warn, error (got %q)", cfg.LogLevel),
		})
	}

	if cfg.Quiet && cfg.Verbose {
		errs = append(errs, ValidationError{
			Field:   "quiet",
			Message: "-q and -v are mutually exclusive",
		})
	}

	if cfg.TUIEnabled && !cfg.IsSwarm() {
		errs = append(errs, ValidationError{
			Field:   "tui",
			Message: "the dashboard needs -runs greater than 1",
		})
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// ApplyCheckMode modifies config for -check mode.
func ApplyCheckMode(cfg *Config) {
	cfg.Runs = 1
	cfg.Parallel = 1
	cfg.TUIEnabled = false
	cfg.Quiet = false
	cfg.Verbose = true
}
