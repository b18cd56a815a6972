package process

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"
)

// DefaultGracePeriod bounds the wait for a killed process to be reaped.
const DefaultGracePeriod = 30 * time.Second

// killable is the part of RunningProcess the canceller needs.
type killable interface {
	Pid() int
	kill() error
}

// termination records when a run's process is known to be gone.
// It finishes once: nil when the exit was observed, or a KillTimeoutError.
type termination struct {
	once sync.Once
	done chan struct{}
	err  error
}

func newTermination() *termination {
	return &termination{done: make(chan struct{})}
}

// finish reports whether this call recorded the termination.
func (t *termination) finish(err error) bool {
	won := false
	t.once.Do(func() {
		won = true
		t.err = err
		close(t.done)
	})
	return won
}

// canceller turns a fired context into a Canceled outcome and a kill.
type canceller struct {
	coord  *coordinator
	proc   killable
	exited <-chan struct{} // closed by the exit observer
	term   *termination
	grace  time.Duration
	logger *slog.Logger

	onCancel      func(err error)
	onKillTimeout func(err error)
}

// watch blocks until ctx fires or the run resolves, whichever is first.
//
// Cancellation that arrives after the run completed does nothing: the
// Canceled trySet loses and the process is left alone.
func (c *canceller) watch(ctx context.Context) {
	select {
	case <-c.coord.done:
		return
	case <-ctx.Done():
	}

	err := canceledError(context.Cause(ctx))
	if !c.coord.trySet(OutcomeCanceled, nil, err) {
		return
	}

	c.logger.Info("run_canceled",
		"pid", c.proc.Pid(),
		"reason", context.Cause(ctx),
	)
	if c.onCancel != nil {
		c.onCancel(err)
	}

	c.terminate()
}

// terminate kills the process unless it already exited, then waits up to the
// grace period for the exit observer to confirm it is gone.
func (c *canceller) terminate() {
	select {
	case <-c.exited:
		// Exited in the interim; nothing to kill.
		return
	default:
	}

	if err := c.proc.kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		c.logger.Warn("kill_failed",
			"pid", c.proc.Pid(),
			"error", err,
		)
	}

	timer := time.NewTimer(c.grace)
	defer timer.Stop()

	select {
	case <-c.exited:
		c.logger.Debug("process_terminated", "pid", c.proc.Pid())
	case <-timer.C:
		kerr := &KillTimeoutError{Pid: c.proc.Pid(), Grace: c.grace}
		if !c.term.finish(kerr) {
			// The exit landed at the same instant as the deadline.
			return
		}
		c.logger.Error("kill_timeout",
			"pid", c.proc.Pid(),
			"grace", c.grace.String(),
			"error", kerr,
		)
		if c.onKillTimeout != nil {
			c.onKillTimeout(kerr)
		}
	}
}
