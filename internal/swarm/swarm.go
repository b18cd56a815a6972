// Package swarm runs one process Spec many times with bounded
// parallelism and a ramped start rate.
package swarm

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/randomizedcoder/runproc/internal/logging"
	"github.com/randomizedcoder/runproc/internal/metrics"
	"github.com/randomizedcoder/runproc/internal/process"
	"github.com/randomizedcoder/runproc/internal/stats"
)

// Config describes a swarm.
type Config struct {
	Spec process.Spec

	Runs     int
	Parallel int

	RampRate   int
	RampJitter time.Duration
	Seed       int64 // jitter seed, 0 = derive from the clock

	Timeout     time.Duration // per run, 0 = none
	GracePeriod time.Duration

	Logger  *slog.Logger
	Verbose bool

	// Metrics is optional.
	Metrics *metrics.Collector

	// OnRun is called after each run resolves. Must be safe for concurrent use.
	OnRun func(RunReport)
}

// RunReport is the outcome of one run in the swarm.
type RunReport struct {
	Index   int
	RunID   string
	Outcome process.Outcome

	// Result is set for Completed runs.
	Result *process.Result

	// Err is set for Canceled and LaunchFailed runs.
	Err error

	// TerminationErr is a KillTimeoutError if a canceled process could not be
	// confirmed dead.
	TerminationErr error

	// RecentStderr holds the last lines of stderr, also for canceled runs.
	RecentStderr []string
}

// Report summarizes a finished swarm.
type Report struct {
	Target   int
	Launched int
	Runs     []RunReport
	Stats    *stats.AggregatedStats
	Duration time.Duration
}

// Count returns how many runs resolved to o.
func (r *Report) Count(o process.Outcome) int {
	n := 0
	for _, run := range r.Runs {
		if run.Outcome == o {
			n++
		}
	}
	return n
}

// Skipped returns how many runs were never launched because the swarm was
// canceled first.
func (r *Report) Skipped() int {
	return r.Target - r.Launched
}

// Swarm executes a Config.
type Swarm struct {
	cfg       Config
	logger    *slog.Logger
	scheduler *RampScheduler
	stats     *stats.Aggregator
	callbacks process.Callbacks
	resolved  atomic.Int64
}

// New creates a swarm. Zero Runs or Parallel are treated as 1.
func New(cfg Config) *Swarm {
	if cfg.Runs < 1 {
		cfg.Runs = 1
	}
	if cfg.Parallel < 1 {
		cfg.Parallel = 1
	}
	if cfg.Parallel > cfg.Runs {
		cfg.Parallel = cfg.Runs
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	js := NewJitterSourceFromTime()
	if cfg.Seed != 0 {
		js = NewJitterSource(cfg.Seed)
	}

	s := &Swarm{
		cfg:       cfg,
		logger:    cfg.Logger,
		scheduler: NewRampSchedulerWithJitter(cfg.RampRate, cfg.RampJitter, js),
		stats:     stats.NewAggregator(),
	}

	// OnStart feeds the aggregator as soon as the pid exists, so the
	// dashboard sees active runs. Resolutions are recorded by runOne.
	s.callbacks = process.Callbacks{
		OnStart: func(string, int) { s.stats.RecordStart() },
	}
	if cfg.Metrics != nil {
		s.callbacks = cfg.Metrics.Callbacks(s.callbacks)
	}
	return s
}

// Stats returns the live aggregator, for dashboards.
func (s *Swarm) Stats() *stats.Aggregator {
	return s.stats
}

// Resolved returns how many runs have resolved so far.
func (s *Swarm) Resolved() int {
	return int(s.resolved.Load())
}

// Run launches every run and waits for all of them.
//
// Canceling ctx stops new launches and cancels the runs in flight; Run still
// waits for them to resolve and returns the partial report. The returned
// error is non-nil only when ctx ended the swarm early.
func (s *Swarm) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	reports := make([]RunReport, s.cfg.Runs)

	s.logger.Info("swarm_starting",
		"path", s.cfg.Spec.Path,
		"runs", s.cfg.Runs,
		"parallel", s.cfg.Parallel,
		"rate", s.cfg.RampRate,
		"jitter_seed", s.scheduler.jitter.Seed(),
		"estimated_ramp", s.scheduler.EstimatedRampDuration(s.cfg.Runs).String(),
	)

	sampling := make(chan struct{})
	defer close(sampling)
	go s.sampleRates(sampling)

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Parallel)

	launched := 0
	for i := 0; i < s.cfg.Runs; i++ {
		if i > 0 { // Don't wait for the first run
			if err := s.scheduler.Schedule(ctx, i); err != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}

		g.Go(func() error {
			reports[i] = s.runOne(ctx, i)
			return nil
		})
		launched++
	}

	if launched < s.cfg.Runs {
		s.logger.Info("swarm_canceled", "launched", launched, "target", s.cfg.Runs)
	}

	// Runs never return errors; Wait only joins them.
	_ = g.Wait()

	report := &Report{
		Target:   s.cfg.Runs,
		Launched: launched,
		Runs:     reports[:launched],
		Stats:    s.stats.Aggregate(),
		Duration: time.Since(start),
	}

	s.logger.Info("swarm_complete",
		"launched", launched,
		"completed", report.Count(process.OutcomeCompleted),
		"canceled", report.Count(process.OutcomeCanceled),
		"launch_failed", report.Count(process.OutcomeLaunchFailed),
		"duration", report.Duration.String(),
	)

	if launched < s.cfg.Runs {
		return report, fmt.Errorf("swarm stopped after %d of %d runs: %w", launched, s.cfg.Runs, context.Cause(ctx))
	}
	return report, nil
}

// sampleRates feeds the aggregator's rate window until stop closes.
func (s *Swarm) sampleRates(stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.stats.Sample()
		}
	}
}

// recentStderrLines is how many stderr lines a RunReport keeps.
const recentStderrLines = 10

func (s *Swarm) runOne(ctx context.Context, index int) RunReport {
	runID := fmt.Sprintf("run-%d-%s", index, uuid.NewString()[:8])
	output := logging.NewOutputHandler(runID, s.logger, s.cfg.Verbose)

	f := process.Start(ctx, s.cfg.Spec,
		process.WithRunID(runID),
		process.WithLogger(s.logger),
		process.WithObserver(output),
		process.WithCallbacks(s.callbacks),
		process.WithTimeout(s.cfg.Timeout),
		process.WithGracePeriod(s.cfg.GracePeriod),
	)

	res, err := f.Wait()
	report := RunReport{
		Index:   index,
		RunID:   f.RunID(),
		Outcome: f.Outcome(),
		Result:  res,
		Err:     err,
	}

	switch report.Outcome {
	case process.OutcomeCompleted:
		s.stats.RecordResult(res)
	case process.OutcomeCanceled:
		s.stats.RecordCancel(f.Process() != nil)
	case process.OutcomeLaunchFailed:
		s.stats.RecordLaunchFailure()
	}

	// Hold the parallelism slot until the process is really gone.
	<-f.Terminated()
	if terr := f.TerminationErr(); terr != nil {
		report.TerminationErr = terr
		s.stats.RecordKillTimeout()
	}

	report.RecentStderr = output.RecentLines(process.StreamStderr, recentStderrLines)
	if res != nil {
		// The swarm only keeps summaries; the pid handle is not needed.
		_ = res.Close()
	}

	n := s.resolved.Add(1)
	if s.cfg.Runs >= 10 && n%int64(s.cfg.Runs/10) == 0 {
		s.logger.Info("swarm_progress",
			"resolved", n,
			"target", s.cfg.Runs,
		)
	}

	if s.cfg.OnRun != nil {
		s.cfg.OnRun(report)
	}
	return report
}
