// Package main provides the runproc CLI entry point.
//
// runproc runs an external process, captures every line it writes to stdout
// and stderr, and reports its exit code and run time. With -runs it becomes a
// swarm: the same process run many times with bounded parallelism, summarized
// at exit.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/randomizedcoder/runproc/internal/config"
	"github.com/randomizedcoder/runproc/internal/logging"
	"github.com/randomizedcoder/runproc/internal/orchestrator"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/runproc
var version = "dev"

// exitUsage is returned for flag and configuration errors.
const exitUsage = 2

func main() {
	os.Exit(run())
}

func run() int {
	// Handle version flag early (before flag parsing)
	if len(os.Args) > 1 {
		arg := os.Args[1]
		if arg == "-version" || arg == "--version" || arg == "version" {
			fmt.Printf("runproc %s\n", version)
			return 0
		}
	}

	cfg, err := config.ParseFlags()
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return exitUsage
	}

	if cfg.Check {
		config.ApplyCheckMode(cfg)
	}

	// When TUI is enabled, suppress logs to avoid interfering with TUI rendering
	var logger *slog.Logger
	if cfg.TUIEnabled {
		logger = logging.NewLoggerWithWriter(io.Discard, cfg.LogFormat, cfg.LogLevel)
	} else {
		logger = logging.NewLogger(cfg.LogFormat, cfg.LogLevel, cfg.Verbose)
	}
	logging.SetDefault(logger)

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return exitUsage
	}

	if cfg.PrintCmd {
		printCommand(cfg)
		return 0
	}

	if cfg.Check {
		logger.Info("check_mode_enabled", "path", cfg.Path)
	}

	logger.Debug("starting",
		"version", version,
		"path", cfg.Path,
		"args", len(cfg.Args),
		"runs", cfg.Runs,
		"parallel", cfg.Parallel,
		"timeout", cfg.Timeout.String(),
		"grace", cfg.GracePeriod.String(),
		"metrics_addr", cfg.MetricsAddr,
	)

	if cfg.IsSwarm() && !cfg.TUIEnabled {
		printBanner(cfg)
	}

	orch := orchestrator.New(cfg, logger, orchestrator.Options{Version: version})
	code, err := orch.Run(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "runproc: %v\n", err)
	}
	return code
}

// printBanner prints the swarm startup banner.
func printBanner(cfg *config.Config) {
	fmt.Fprintln(os.Stderr)
	fmt.Fprintf(os.Stderr, "  Command:     %s\n", cfg.ProcessSpec())
	fmt.Fprintf(os.Stderr, "  Runs:        %d, %d at a time\n", cfg.Runs, cfg.Parallel)
	if cfg.RampRate > 0 {
		fmt.Fprintf(os.Stderr, "  Ramp:        %d/sec (jitter %s)\n", cfg.RampRate, cfg.RampJitter)
	}
	if cfg.Timeout > 0 {
		fmt.Fprintf(os.Stderr, "  Timeout:     %s per run\n", cfg.Timeout)
	}
	if cfg.MetricsAddr != "" {
		fmt.Fprintf(os.Stderr, "  Metrics:     http://%s/metrics\n", cfg.MetricsAddr)
	}
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Press Ctrl+C to stop.")
	fmt.Fprintln(os.Stderr)
}

// printCommand prints what would be run for each run.
func printCommand(cfg *config.Config) {
	spec := cfg.ProcessSpec()

	fmt.Println("# Command that would be run:")
	fmt.Println()
	if spec.Dir != "" {
		fmt.Printf("# in %s\n", spec.Dir)
	}
	if spec.Credential != nil {
		fmt.Printf("# as user %s\n", spec.Credential.Username)
	}
	for _, kv := range config.EnvPairs(spec.Env) {
		fmt.Printf("%s ", kv)
	}
	fmt.Println(spec.String())
}
