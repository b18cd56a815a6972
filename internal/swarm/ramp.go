package swarm

import (
	"context"
	"time"
)

// RampScheduler controls the rate at which runs are started.
// It keeps a swarm from spawning every process at once and adds per-run
// jitter so starts don't line up.
type RampScheduler struct {
	rate      int           // runs per second, 0 = unlimited
	maxJitter time.Duration // maximum jitter per run
	jitter    *JitterSource
}

// NewRampScheduler creates a scheduler with a time-based jitter seed.
func NewRampScheduler(rate int, maxJitter time.Duration) *RampScheduler {
	return NewRampSchedulerWithJitter(rate, maxJitter, NewJitterSourceFromTime())
}

// NewRampSchedulerWithJitter creates a scheduler using js for jitter.
func NewRampSchedulerWithJitter(rate int, maxJitter time.Duration, js *JitterSource) *RampScheduler {
	return &RampScheduler{
		rate:      rate,
		maxJitter: maxJitter,
		jitter:    js,
	}
}

// Delay returns how long to wait before starting run index.
func (r *RampScheduler) Delay(index int) time.Duration {
	var base time.Duration
	if r.rate > 0 {
		// rate=5 means 1 run per 200ms
		base = time.Second / time.Duration(r.rate)
	}
	return base + r.jitter.RunJitter(index, r.maxJitter)
}

// Schedule waits before starting run index.
// Returns nil on success, or the context error if canceled.
func (r *RampScheduler) Schedule(ctx context.Context, index int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	delay := r.Delay(index)
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// EstimatedRampDuration returns the estimated time to start all runs.
func (r *RampScheduler) EstimatedRampDuration(total int) time.Duration {
	if r.rate <= 0 {
		return 0
	}
	base := time.Duration(total) * time.Second / time.Duration(r.rate)
	return base + r.maxJitter/2
}

// Rate returns the configured rate (runs per second).
func (r *RampScheduler) Rate() int {
	return r.rate
}

// MaxJitter returns the configured maximum jitter.
func (r *RampScheduler) MaxJitter() time.Duration {
	return r.maxJitter
}
