package process

import (
	"os"
	"sync/atomic"
	"time"
)

// Outcome is the terminal state of a run.
type Outcome int32

const (
	// OutcomePending means the run has not resolved yet.
	OutcomePending Outcome = iota

	// OutcomeCompleted means the process exited and both streams closed.
	OutcomeCompleted

	// OutcomeCanceled means cancellation fired before natural completion.
	OutcomeCanceled

	// OutcomeLaunchFailed means the process never started.
	OutcomeLaunchFailed
)

// String returns a human-readable name for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeCompleted:
		return "completed"
	case OutcomeCanceled:
		return "canceled"
	case OutcomeLaunchFailed:
		return "launch_failed"
	default:
		return "unknown"
	}
}

// IsTerminal returns true once the outcome can no longer change.
func (o Outcome) IsTerminal() bool {
	return o != OutcomePending
}

// Result is the immutable record of a completed run.
type Result struct {
	// RunID identifies the run in logs and metrics.
	RunID string

	// ExitCode is the process exit status. A process killed by a signal
	// reports 128 + signal number.
	ExitCode int

	// StartTime is the observed start time (see RunningProcess.StartTime).
	StartTime time.Time

	// RunTime is the exit instant minus StartTime.
	RunTime time.Duration

	// Stdout and Stderr hold every captured line in emission order.
	// Never nil; empty when the stream produced nothing.
	Stdout []string
	Stderr []string

	// Process allows further inspection of the exited process.
	Process *RunningProcess
}

// Close releases the OS resources held for the process.
func (r *Result) Close() error {
	if r == nil || r.Process == nil {
		return nil
	}
	return r.Process.Release()
}

// RunningProcess is the handle of a spawned process.
// It is owned by the run until the Result is delivered, then by the caller.
type RunningProcess struct {
	proc      *os.Process
	startTime time.Time
	precise   bool

	state    atomic.Pointer[os.ProcessState]
	exitTime atomic.Int64 // unix nanos, 0 until exit observed
	released atomic.Bool
}

func newRunningProcess(proc *os.Process, start time.Time, precise bool) *RunningProcess {
	return &RunningProcess{
		proc:      proc,
		startTime: start,
		precise:   precise,
	}
}

// Pid returns the OS process identifier.
func (p *RunningProcess) Pid() int {
	return p.proc.Pid
}

// StartTime returns the observed start time.
//
// On Linux this is the kernel's start time when it could be read right after
// spawn and lies within about a second of the spawn window, clamped into that
// window. Otherwise it is the wall-clock instant immediately before the spawn
// call. PreciseStart reports whether the kernel value was used.
func (p *RunningProcess) StartTime() time.Time {
	return p.startTime
}

// PreciseStart reports whether StartTime came from the OS.
func (p *RunningProcess) PreciseStart() bool {
	return p.precise
}

// HasExited reports whether the exit observer has reaped the process.
func (p *RunningProcess) HasExited() bool {
	return p.state.Load() != nil
}

// State returns the exit state, or nil while the process is running.
func (p *RunningProcess) State() *os.ProcessState {
	return p.state.Load()
}

// ExitTime returns when the exit was observed, or the zero time.
func (p *RunningProcess) ExitTime() time.Time {
	ns := p.exitTime.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Alive probes the OS for the process with signal 0.
// A reaped process is never alive.
func (p *RunningProcess) Alive() bool {
	if p.HasExited() {
		return false
	}
	return pidAlive(p.proc.Pid)
}

// Release frees the OS handle. Safe to call more than once.
func (p *RunningProcess) Release() error {
	if p.released.Swap(true) {
		return nil
	}
	return p.proc.Release()
}

// markExited records the exit state. Called once by the exit observer.
func (p *RunningProcess) markExited(state *os.ProcessState, at time.Time) {
	p.exitTime.Store(at.UnixNano())
	p.state.Store(state)
}

// kill sends SIGKILL. A process that already finished is not an error.
func (p *RunningProcess) kill() error {
	return p.proc.Kill()
}
