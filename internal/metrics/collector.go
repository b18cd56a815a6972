// Package metrics provides Prometheus metrics for runproc.
//
// All metrics are aggregate and safe for large swarms: labels are limited to
// outcome, stream and exit code, never run IDs or PIDs.
package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/randomizedcoder/runproc/internal/process"
)

// Collector manages all Prometheus metrics for runproc.
type Collector struct {
	info          *prometheus.GaugeVec
	runsStarted   prometheus.Counter
	runsTotal     *prometheus.CounterVec
	exitCodes     *prometheus.CounterVec
	runDuration   prometheus.Histogram
	linesCaptured *prometheus.CounterVec
	killTimeouts  prometheus.Counter
	activeRuns    prometheus.Gauge

	// For summary generation
	mu         sync.Mutex
	active     int
	peakActive int
}

// CollectorConfig holds configuration for the collector.
type CollectorConfig struct {
	Version string
	Path    string
}

// NewCollector creates a collector registered with the default registry.
func NewCollector(cfg CollectorConfig) *Collector {
	return NewCollectorWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector with a custom registry.
// Useful for testing.
func NewCollectorWithRegistry(cfg CollectorConfig, registry prometheus.Registerer) *Collector {
	c := &Collector{
		info: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "runproc_info",
				Help: "Information about the runproc invocation (value always 1)",
			},
			[]string{"version", "path"},
		),
		runsStarted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "runproc_runs_started_total",
				Help: "Processes successfully spawned",
			},
		),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "runproc_runs_total",
				Help: "Resolved runs by outcome",
			},
			[]string{"outcome"},
		),
		exitCodes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "runproc_exit_codes_total",
				Help: "Completed runs by exit code",
			},
			[]string{"code"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "runproc_run_duration_seconds",
				Help:    "Run time of completed processes",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 12), // 1ms .. ~70min
			},
		),
		linesCaptured: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "runproc_lines_captured_total",
				Help: "Output lines captured from completed runs",
			},
			[]string{"stream"},
		),
		killTimeouts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "runproc_kill_timeouts_total",
				Help: "Canceled processes not confirmed dead within the grace period",
			},
		),
		activeRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "runproc_active_runs",
				Help: "Runs spawned and not yet resolved",
			},
		),
	}

	registry.MustRegister(
		c.info,
		c.runsStarted,
		c.runsTotal,
		c.exitCodes,
		c.runDuration,
		c.linesCaptured,
		c.killTimeouts,
		c.activeRuns,
	)

	// Pre-create outcome series so rates start at zero
	for _, o := range []process.Outcome{process.OutcomeCompleted, process.OutcomeCanceled, process.OutcomeLaunchFailed} {
		c.runsTotal.WithLabelValues(o.String())
	}
	c.linesCaptured.WithLabelValues(string(process.StreamStdout))
	c.linesCaptured.WithLabelValues(string(process.StreamStderr))

	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	c.info.WithLabelValues(version, cfg.Path).Set(1)

	return c
}

// =============================================================================
// Event Recording Methods
// =============================================================================

// RunStarted records a spawned process.
func (c *Collector) RunStarted() {
	c.runsStarted.Inc()
	c.adjustActive(1)
}

// RunCompleted records a Completed run.
func (c *Collector) RunCompleted(res *process.Result) {
	c.runsTotal.WithLabelValues(process.OutcomeCompleted.String()).Inc()
	c.exitCodes.WithLabelValues(strconv.Itoa(res.ExitCode)).Inc()
	c.runDuration.Observe(res.RunTime.Seconds())
	c.linesCaptured.WithLabelValues(string(process.StreamStdout)).Add(float64(len(res.Stdout)))
	c.linesCaptured.WithLabelValues(string(process.StreamStderr)).Add(float64(len(res.Stderr)))
	c.adjustActive(-1)
}

// RunCanceled records a Canceled run. spawned is false when cancellation
// fired before anything was started.
func (c *Collector) RunCanceled(spawned bool) {
	c.runsTotal.WithLabelValues(process.OutcomeCanceled.String()).Inc()
	if spawned {
		c.adjustActive(-1)
	}
}

// LaunchFailed records a run the OS refused to start.
func (c *Collector) LaunchFailed() {
	c.runsTotal.WithLabelValues(process.OutcomeLaunchFailed.String()).Inc()
}

// KillTimeout records a canceled process that outlived its grace period.
func (c *Collector) KillTimeout() {
	c.killTimeouts.Inc()
}

func (c *Collector) adjustActive(delta int) {
	c.mu.Lock()
	c.active += delta
	if c.active > c.peakActive {
		c.peakActive = c.active
	}
	active := c.active
	c.mu.Unlock()

	c.activeRuns.Set(float64(active))
}

// PeakActive returns the highest number of concurrently active runs.
func (c *Collector) PeakActive() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peakActive
}

// Callbacks returns process callbacks that record into c and then call next.
//
// Spawned-but-canceled runs are told apart from never-spawned ones by
// tracking run IDs seen in OnStart.
func (c *Collector) Callbacks(next process.Callbacks) process.Callbacks {
	var started sync.Map

	return process.Callbacks{
		OnStart: func(runID string, pid int) {
			started.Store(runID, struct{}{})
			c.RunStarted()
			if next.OnStart != nil {
				next.OnStart(runID, pid)
			}
		},
		OnComplete: func(runID string, res *process.Result) {
			started.Delete(runID)
			c.RunCompleted(res)
			if next.OnComplete != nil {
				next.OnComplete(runID, res)
			}
		},
		OnCancel: func(runID string, err error) {
			_, spawned := started.LoadAndDelete(runID)
			c.RunCanceled(spawned)
			if next.OnCancel != nil {
				next.OnCancel(runID, err)
			}
		},
		OnLaunchFailed: func(runID string, err error) {
			c.LaunchFailed()
			if next.OnLaunchFailed != nil {
				next.OnLaunchFailed(runID, err)
			}
		},
		OnKillTimeout: func(runID string, err error) {
			c.KillTimeout()
			if next.OnKillTimeout != nil {
				next.OnKillTimeout(runID, err)
			}
		},
	}
}
