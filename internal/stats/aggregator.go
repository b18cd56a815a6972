// Package stats aggregates run outcomes for swarms of process runs.
package stats

import (
	"sync"
	"time"

	"github.com/influxdata/tdigest"

	"github.com/randomizedcoder/runproc/internal/process"
	"github.com/randomizedcoder/runproc/internal/timeseries"
)

// MaxFailureSamples bounds how many failed runs are kept for the summary.
const MaxFailureSamples = 5

// failureTailLines is how many stderr lines a failure sample keeps.
const failureTailLines = 3

// FailureSample describes one run that exited non-zero.
type FailureSample struct {
	RunID      string
	ExitCode   int
	RunTime    time.Duration
	StderrTail []string
}

// AggregatedStats is a point-in-time snapshot across all runs.
type AggregatedStats struct {
	Elapsed time.Duration

	// Run counts
	Started      int64
	Active       int
	PeakActive   int
	Completed    int64
	Canceled     int64
	LaunchFailed int64
	KillTimeouts int64

	// Exit codes of completed runs
	ExitCodes    map[int]int64
	NonZeroExits int64

	// Run time distribution of completed runs
	RunTimeMin  time.Duration
	RunTimeMax  time.Duration
	RunTimeMean time.Duration
	RunTimeP50  time.Duration
	RunTimeP90  time.Duration
	RunTimeP95  time.Duration
	RunTimeP99  time.Duration

	// Captured output
	StdoutLines int64
	StderrLines int64

	// Rates
	CompletionsPerSec    float64 // since start
	RecentResolvedPerSec float64 // over the last 10s, see Aggregator.Sample

	Failures []FailureSample
}

// Resolved returns how many runs reached a terminal outcome.
func (s *AggregatedStats) Resolved() int64 {
	return s.Completed + s.Canceled + s.LaunchFailed
}

// SuccessRate returns the fraction of resolved runs that completed with
// exit code 0.
func (s *AggregatedStats) SuccessRate() float64 {
	resolved := s.Resolved()
	if resolved == 0 {
		return 0
	}
	return float64(s.Completed-s.NonZeroExits) / float64(resolved)
}

// Aggregator collects run outcomes. Safe for concurrent use.
type Aggregator struct {
	mu        sync.Mutex
	startTime time.Time

	started      int64
	active       int
	peakActive   int
	completed    int64
	canceled     int64
	launchFailed int64
	killTimeouts int64

	exitCodes    map[int]int64
	nonZeroExits int64

	runTimes   *tdigest.TDigest
	runTimeMin time.Duration
	runTimeMax time.Duration
	runTimeSum time.Duration

	stdoutLines int64
	stderrLines int64

	failures []FailureSample

	resolvedRate *timeseries.RateTracker
}

// NewAggregator creates an empty aggregator whose clock starts now.
func NewAggregator() *Aggregator {
	return &Aggregator{
		startTime: time.Now(),
		exitCodes: make(map[int]int64),
		runTimes:  tdigest.NewWithCompression(100), // ~100 centroids, ~10KB

		resolvedRate: timeseries.NewRateTracker(),
	}
}

// RecordStart records a spawned process.
func (a *Aggregator) RecordStart() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.started++
	a.active++
	if a.active > a.peakActive {
		a.peakActive = a.active
	}
}

// RecordResult records a Completed run.
func (a *Aggregator) RecordResult(res *process.Result) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.active--
	a.completed++
	a.resolvedRate.Add(1)
	a.exitCodes[res.ExitCode]++

	a.runTimes.Add(float64(res.RunTime.Nanoseconds()), 1)
	if a.completed == 1 || res.RunTime < a.runTimeMin {
		a.runTimeMin = res.RunTime
	}
	if res.RunTime > a.runTimeMax {
		a.runTimeMax = res.RunTime
	}
	a.runTimeSum += res.RunTime

	a.stdoutLines += int64(len(res.Stdout))
	a.stderrLines += int64(len(res.Stderr))

	if res.ExitCode != 0 {
		a.nonZeroExits++
		if len(a.failures) < MaxFailureSamples {
			a.failures = append(a.failures, FailureSample{
				RunID:      res.RunID,
				ExitCode:   res.ExitCode,
				RunTime:    res.RunTime,
				StderrTail: tail(res.Stderr, failureTailLines),
			})
		}
	}
}

// RecordCancel records a Canceled run. spawned is false when nothing was
// started.
func (a *Aggregator) RecordCancel(spawned bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.canceled++
	a.resolvedRate.Add(1)
	if spawned {
		a.active--
	}
}

// RecordLaunchFailure records a run the OS refused to start.
func (a *Aggregator) RecordLaunchFailure() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.launchFailed++
	a.resolvedRate.Add(1)
}

// RecordKillTimeout records a canceled process that outlived its grace period.
func (a *Aggregator) RecordKillTimeout() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.killTimeouts++
}

// Aggregate returns a snapshot of everything recorded so far.
func (a *Aggregator) Aggregate() *AggregatedStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	elapsed := time.Since(a.startTime)
	s := &AggregatedStats{
		Elapsed:      elapsed,
		Started:      a.started,
		Active:       a.active,
		PeakActive:   a.peakActive,
		Completed:    a.completed,
		Canceled:     a.canceled,
		LaunchFailed: a.launchFailed,
		KillTimeouts: a.killTimeouts,
		ExitCodes:    make(map[int]int64, len(a.exitCodes)),
		NonZeroExits: a.nonZeroExits,
		StdoutLines:  a.stdoutLines,
		StderrLines:  a.stderrLines,
		Failures:     append([]FailureSample(nil), a.failures...),
	}

	for code, count := range a.exitCodes {
		s.ExitCodes[code] = count
	}

	if a.completed > 0 {
		s.RunTimeMin = a.runTimeMin
		s.RunTimeMax = a.runTimeMax
		s.RunTimeMean = a.runTimeSum / time.Duration(a.completed)
		s.RunTimeP50 = a.quantile(0.50)
		s.RunTimeP90 = a.quantile(0.90)
		s.RunTimeP95 = a.quantile(0.95)
		s.RunTimeP99 = a.quantile(0.99)
	}

	if secs := elapsed.Seconds(); secs > 0 {
		s.CompletionsPerSec = float64(a.completed) / secs
	}
	s.RecentResolvedPerSec = a.resolvedRate.Stats().Rate10s

	return s
}

// quantile clamps the digest estimate to the observed range.
func (a *Aggregator) quantile(q float64) time.Duration {
	d := time.Duration(a.runTimes.Quantile(q))
	if d < a.runTimeMin {
		return a.runTimeMin
	}
	if d > a.runTimeMax {
		return a.runTimeMax
	}
	return d
}

// Sample records a point for the recent resolution rate. Call it about once
// a second while runs are in flight.
func (a *Aggregator) Sample() {
	a.resolvedRate.Sample()
}

// StartTime returns when the aggregator was created.
func (a *Aggregator) StartTime() time.Time {
	return a.startTime
}

// Elapsed returns the time since the aggregator was created.
func (a *Aggregator) Elapsed() time.Duration {
	return time.Since(a.startTime)
}

func tail(lines []string, n int) []string {
	if len(lines) <= n {
		return append([]string(nil), lines...)
	}
	return append([]string(nil), lines[len(lines)-n:]...)
}
