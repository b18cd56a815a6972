// Package timeseries tracks event rates over rolling time windows.
//
// A RateTracker keeps a cumulative counter and a ring of periodic samples of
// it. Rates are the counter delta over the newest window divided by the
// actual time spanned, so a late or missed sample skews nothing.
package timeseries

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	// ringSize retains two minutes of history at one sample per second.
	ringSize = 120

	window1s  = 1 * time.Second
	window10s = 10 * time.Second
	window60s = 60 * time.Second
)

// Clock allows tests to control time.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type sample struct {
	at    time.Time
	count int64
}

// RateTracker counts events and reports rolling rates.
//
// Add is lock-free and may be called from any goroutine. Sample should be
// called periodically, typically once a second.
type RateTracker struct {
	total atomic.Int64

	mu      sync.RWMutex
	samples []sample
	next    int // ring write position once full
	start   time.Time
	clock   Clock
}

// RateStats is a point-in-time view of a RateTracker. Rates are per second.
type RateStats struct {
	Total int64

	Rate1s  float64
	Rate10s float64
	Rate60s float64

	RateOverall float64
}

// NewRateTracker creates a tracker using the wall clock.
func NewRateTracker() *RateTracker {
	return NewRateTrackerWithClock(realClock{})
}

// NewRateTrackerWithClock creates a tracker with a custom clock.
func NewRateTrackerWithClock(clock Clock) *RateTracker {
	now := clock.Now()
	return &RateTracker{
		samples: append(make([]sample, 0, ringSize), sample{at: now}),
		start:   now,
		clock:   clock,
	}
}

// Add counts n events. Non-positive n is ignored.
func (t *RateTracker) Add(n int64) {
	if n > 0 {
		t.total.Add(n)
	}
}

// Sample records the current count.
func (t *RateTracker) Sample() {
	s := sample{at: t.clock.Now(), count: t.total.Load()}

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.samples) < ringSize {
		t.samples = append(t.samples, s)
		return
	}
	t.samples[t.next] = s
	t.next = (t.next + 1) % ringSize
}

// Stats computes the current rates.
func (t *RateTracker) Stats() RateStats {
	now := t.clock.Now()
	total := t.total.Load()

	t.mu.RLock()
	defer t.mu.RUnlock()

	st := RateStats{Total: total}
	if elapsed := now.Sub(t.start).Seconds(); elapsed > 0 {
		st.RateOverall = float64(total) / elapsed
	}
	st.Rate1s = t.rateOver(now, total, window1s)
	st.Rate10s = t.rateOver(now, total, window10s)
	st.Rate60s = t.rateOver(now, total, window60s)
	return st
}

// rateOver uses the newest sample at or before now-window as the baseline,
// falling back to the oldest sample when history is shorter than window.
// Must be called with mu held.
func (t *RateTracker) rateOver(now time.Time, total int64, window time.Duration) float64 {
	cutoff := now.Add(-window)

	var base *sample
	for i := range t.samples {
		s := &t.samples[i]
		if s.at.After(cutoff) {
			continue
		}
		if base == nil || s.at.After(base.at) {
			base = s
		}
	}
	if base == nil {
		base = t.oldest()
	}

	span := now.Sub(base.at).Seconds()
	if span <= 0 {
		return 0
	}
	return float64(total-base.count) / span
}

// oldest must be called with mu held.
func (t *RateTracker) oldest() *sample {
	if len(t.samples) < ringSize {
		return &t.samples[0]
	}
	return &t.samples[t.next]
}

// SampleCount returns the number of retained samples.
func (t *RateTracker) SampleCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.samples)
}
