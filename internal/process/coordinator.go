package process

import (
	"sync/atomic"
	"time"
)

// coordinator is the single-assignment result slot of a run.
//
// The outcome moves from OutcomePending to a terminal outcome exactly once via
// compare-and-swap. The winner stores the result and error, then closes done;
// the close publishes those writes to every reader of done. A losing trySet is
// a silent no-op.
//
// No mutex is involved, so trySet is safe to call from any goroutine,
// including ones that are themselves blocked on process or pipe events.
type coordinator struct {
	outcome atomic.Int32
	done    chan struct{}

	// Written once by the trySet winner, before done is closed.
	result *Result
	err    error
}

func newCoordinator() *coordinator {
	return &coordinator{done: make(chan struct{})}
}

// trySet assigns the terminal outcome if none has been assigned yet.
// Reports whether this call won.
func (c *coordinator) trySet(outcome Outcome, res *Result, err error) bool {
	if !c.outcome.CompareAndSwap(int32(OutcomePending), int32(outcome)) {
		return false
	}
	c.result = res
	c.err = err
	close(c.done)
	return true
}

// Outcome returns the current outcome; OutcomePending until resolved.
func (c *coordinator) Outcome() Outcome {
	return Outcome(c.outcome.Load())
}

// exitInfo is what the exit observer reports.
type exitInfo struct {
	code int
	at   time.Time
}

// join waits for all three readiness signals, in any order, then builds the
// Result and tries to complete the slot.
//
// The exit notification does not imply the pipes are drained: the kernel may
// deliver the exit before the final bytes are read. join therefore waits for
// each collector's end-of-stream snapshot instead of reading sink state when
// the exit arrives.
//
// If the slot resolves first (cancellation), join returns without attempting
// a completion.
func (c *coordinator) join(rp *RunningProcess, runID string, exited <-chan exitInfo, stdout, stderr <-chan []string) (*Result, bool) {
	var (
		exit                exitInfo
		outLines, errLines  []string
		haveExit            bool
		haveStdout, haveErr bool
	)

	for !(haveExit && haveStdout && haveErr) {
		select {
		case exit = <-exited:
			haveExit = true
			exited = nil
		case outLines = <-stdout:
			haveStdout = true
			stdout = nil
		case errLines = <-stderr:
			haveErr = true
			stderr = nil
		case <-c.done:
			return nil, false
		}
	}

	start := rp.StartTime()
	res := &Result{
		RunID:     runID,
		ExitCode:  exit.code,
		StartTime: start,
		RunTime:   exit.at.Sub(start),
		Stdout:    outLines,
		Stderr:    errLines,
		Process:   rp,
	}
	if !c.trySet(OutcomeCompleted, res, nil) {
		return nil, false
	}
	return res, true
}
