// Package orchestrator wires configuration, preflight checks, metrics and
// the dashboard around a single run or a swarm of runs.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/randomizedcoder/runproc/internal/config"
	"github.com/randomizedcoder/runproc/internal/logging"
	"github.com/randomizedcoder/runproc/internal/metrics"
	"github.com/randomizedcoder/runproc/internal/preflight"
	"github.com/randomizedcoder/runproc/internal/process"
	"github.com/randomizedcoder/runproc/internal/stats"
	"github.com/randomizedcoder/runproc/internal/swarm"
	"github.com/randomizedcoder/runproc/internal/tui"
)

// Exit codes for outcomes that carry no process exit status.
const (
	ExitFailure      = 1
	ExitTimeout      = 124
	ExitNotRunnable  = 126
	ExitLaunchFailed = 127
	ExitInterrupted  = 130
)

// shutdownTimeout bounds the metrics server shutdown.
const shutdownTimeout = 10 * time.Second

// Options carries what the orchestrator needs beyond the config.
type Options struct {
	Version string

	// Stdout and Stderr receive echoed process output and reports.
	// Default to os.Stdout and os.Stderr.
	Stdout io.Writer
	Stderr io.Writer

	// Registry holds the metrics; nil uses the default Prometheus registry.
	Registry *prometheus.Registry
}

// Orchestrator coordinates all components for one invocation.
type Orchestrator struct {
	config *config.Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer

	metrics       *metrics.Collector
	gatherer      prometheus.Gatherer
	metricsServer *metrics.Server // nil when disabled

	startTime time.Time
}

// New creates an Orchestrator for cfg.
func New(cfg *config.Config, logger *slog.Logger, opts Options) *Orchestrator {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	collectorCfg := metrics.CollectorConfig{Version: opts.Version, Path: cfg.Path}
	var (
		collector *metrics.Collector
		gatherer  prometheus.Gatherer = prometheus.DefaultGatherer
	)
	if opts.Registry != nil {
		collector = metrics.NewCollectorWithRegistry(collectorCfg, opts.Registry)
		gatherer = opts.Registry
	} else {
		collector = metrics.NewCollector(collectorCfg)
	}

	o := &Orchestrator{
		config:   cfg,
		logger:   logger,
		stdout:   opts.Stdout,
		stderr:   opts.Stderr,
		metrics:  collector,
		gatherer: gatherer,
	}
	if cfg.MetricsAddr != "" {
		o.metricsServer = metrics.NewServerWithGatherer(cfg.MetricsAddr, gatherer, logger)
	}
	return o
}

// Run executes the invocation and returns the exit code the CLI should use.
// The error is non-nil only when nothing could be run at all.
func (o *Orchestrator) Run(ctx context.Context) (int, error) {
	o.startTime = time.Now()

	if !o.config.SkipPreflight {
		result := preflight.RunAll(o.config.Parallel, o.config.ProcessSpec())
		if !result.Passed || o.config.Check || o.config.IsSwarm() {
			preflight.PrintResults(o.stderr, result)
		}
		if !result.Passed {
			return ExitFailure, fmt.Errorf("preflight checks failed (use -skip-preflight to override)")
		}
	}

	if o.metricsServer != nil {
		if err := o.metricsServer.Start(); err != nil {
			return ExitFailure, fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer o.shutdownMetrics()
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var code int
	if o.config.IsSwarm() {
		code = o.runSwarm(ctx)
	} else {
		code = o.runSingle(ctx)
	}

	if o.config.Check {
		o.dumpMetrics()
	}
	return code, nil
}

// dumpMetrics writes the exported metrics in text format, so -check shows
// what a scrape would return.
func (o *Orchestrator) dumpMetrics() {
	fmt.Fprintln(o.stderr, "\nMetrics:")
	if err := metrics.WriteText(o.stderr, o.gatherer); err != nil {
		o.logger.Warn("metrics_dump_failed", "error", err)
	}
}

func (o *Orchestrator) shutdownMetrics() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := o.metricsServer.Shutdown(ctx); err != nil {
		o.logger.Warn("metrics_server_shutdown_error", "error", err)
	}
}

// runSingle runs the process once, echoing its output live.
func (o *Orchestrator) runSingle(ctx context.Context) int {
	spec := o.config.ProcessSpec()
	runID := "run-0"

	handler := logging.NewOutputHandler(runID, o.logger, o.config.Verbose)
	var observer process.LineObserver = handler
	if !o.config.Quiet {
		observer = multiObserver{newEchoObserver(o.stdout, o.stderr), handler}
	}

	f := process.Start(ctx, spec,
		process.WithRunID(runID),
		process.WithLogger(o.logger),
		process.WithObserver(observer),
		process.WithCallbacks(o.metrics.Callbacks(process.Callbacks{})),
		process.WithTimeout(o.config.Timeout),
		process.WithGracePeriod(o.config.GracePeriod),
	)

	res, err := f.Wait()
	<-f.Terminated()
	if terr := f.TerminationErr(); terr != nil {
		fmt.Fprintf(o.stderr, "runproc: %v\n", terr)
	}
	return o.exitCode(res, err)
}

// exitCode maps a run's outcome to the CLI exit status.
func (o *Orchestrator) exitCode(res *process.Result, err error) int {
	if err == nil {
		defer res.Close()
		return res.ExitCode
	}

	var lerr *process.LaunchError
	switch {
	case errors.As(err, &lerr):
		fmt.Fprintf(o.stderr, "runproc: %v\n", err)
		if errors.Is(err, fs.ErrPermission) {
			return ExitNotRunnable
		}
		return ExitLaunchFailed
	case errors.Is(err, context.DeadlineExceeded):
		fmt.Fprintf(o.stderr, "runproc: timed out after %s\n", o.config.Timeout)
		return ExitTimeout
	case errors.Is(err, process.ErrCanceled):
		return ExitInterrupted
	default:
		fmt.Fprintf(o.stderr, "runproc: %v\n", err)
		return ExitFailure
	}
}

// runSwarm runs the configured swarm and prints the exit summary.
func (o *Orchestrator) runSwarm(ctx context.Context) int {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sw := swarm.New(swarm.Config{
		Spec:        o.config.ProcessSpec(),
		Runs:        o.config.Runs,
		Parallel:    o.config.Parallel,
		RampRate:    o.config.RampRate,
		RampJitter:  o.config.RampJitter,
		Timeout:     o.config.Timeout,
		GracePeriod: o.config.GracePeriod,
		Logger:      o.logger,
		Verbose:     o.config.Verbose,
		Metrics:     o.metrics,
	})

	var (
		report *swarm.Report
		err    error
	)
	if o.config.TUIEnabled {
		report, err = o.runWithDashboard(ctx, cancel, sw)
	} else {
		report, err = sw.Run(ctx)
	}

	fmt.Fprint(o.stdout, stats.FormatExitSummary(report.Stats, stats.SummaryConfig{
		Command:     o.config.ProcessSpec().String(),
		TargetRuns:  o.config.Runs,
		Parallel:    o.config.Parallel,
		Duration:    report.Duration,
		MetricsAddr: o.metricsAddr(),
	}))

	if err != nil {
		o.logger.Warn("swarm_incomplete", "error", err, "skipped", report.Skipped())
		return ExitInterrupted
	}
	// Every run may have launched before the interrupt; those resolve
	// Canceled and Run reports no error.
	if ctx.Err() != nil {
		o.logger.Warn("swarm_interrupted", "canceled", report.Count(process.OutcomeCanceled))
		return ExitInterrupted
	}
	return swarmExitCode(report)
}

// runWithDashboard runs sw while the TUI polls its aggregator. Quitting the
// dashboard cancels the swarm.
func (o *Orchestrator) runWithDashboard(ctx context.Context, cancel context.CancelFunc, sw *swarm.Swarm) (*swarm.Report, error) {
	model := tui.New(tui.Config{
		TargetRuns:  o.config.Runs,
		Parallel:    o.config.Parallel,
		Command:     o.config.ProcessSpec().String(),
		MetricsAddr: o.metricsAddr(),
		StatsSource: sw.Stats(),
	})
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	type outcome struct {
		report *swarm.Report
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		report, err := sw.Run(ctx)
		done <- outcome{report, err}
		tui.SendQuit(program)
	}()

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		o.logger.Warn("tui_error", "error", err)
	}
	select {
	case out := <-done:
		return out.report, out.err
	default:
	}

	// The dashboard was quit before the swarm finished; anything still
	// running is unwanted.
	cancel()
	out := <-done
	return out.report, out.err
}

func (o *Orchestrator) metricsAddr() string {
	if o.metricsServer == nil {
		return ""
	}
	return o.metricsServer.Addr()
}

// swarmExitCode is 0 only when every run completed with exit code 0.
func swarmExitCode(r *swarm.Report) int {
	for _, run := range r.Runs {
		if run.Outcome != process.OutcomeCompleted || run.Result.ExitCode != 0 {
			return ExitFailure
		}
	}
	return 0
}

// Metrics returns the metrics collector.
func (o *Orchestrator) Metrics() *metrics.Collector {
	return o.metrics
}
