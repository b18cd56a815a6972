package timeseries

import (
	"sync"
	"testing"
	"time"
)

// fakeClock provides deterministic time for testing.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func approx(got, want float64) bool {
	return got >= want*0.9 && got <= want*1.1
}

func TestRateTracker_Add(t *testing.T) {
	tests := []struct {
		name string
		adds []int64
		want int64
	}{
		{"single", []int64{5}, 5},
		{"several", []int64{1, 2, 3}, 6},
		{"zero ignored", []int64{1, 0, 1}, 2},
		{"negative ignored", []int64{10, -4, 1}, 11},
		{"none", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewRateTrackerWithClock(newFakeClock())
			for _, n := range tt.adds {
				tracker.Add(n)
			}
			if got := tracker.Stats().Total; got != tt.want {
				t.Errorf("Total = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRateTracker_ConstantRate(t *testing.T) {
	clock := newFakeClock()
	tracker := NewRateTrackerWithClock(clock)

	// 4 completions per second for a minute
	for i := 0; i < 60; i++ {
		tracker.Add(4)
		clock.Advance(time.Second)
		tracker.Sample()
	}

	st := tracker.Stats()
	for name, rate := range map[string]float64{
		"Rate1s":      st.Rate1s,
		"Rate10s":     st.Rate10s,
		"Rate60s":     st.Rate60s,
		"RateOverall": st.RateOverall,
	} {
		if !approx(rate, 4) {
			t.Errorf("%s = %f, want ~4", name, rate)
		}
	}
}

func TestRateTracker_BurstThenIdle(t *testing.T) {
	clock := newFakeClock()
	tracker := NewRateTrackerWithClock(clock)

	tracker.Add(100)
	tracker.Sample()
	for i := 0; i < 20; i++ {
		clock.Advance(time.Second)
		tracker.Sample()
	}

	st := tracker.Stats()
	if st.Rate1s != 0 || st.Rate10s != 0 {
		t.Errorf("recent rates = %f/%f, want 0 after idling", st.Rate1s, st.Rate10s)
	}
	if !approx(st.RateOverall, 5) {
		t.Errorf("RateOverall = %f, want ~5", st.RateOverall)
	}
}

func TestRateTracker_ShortHistory(t *testing.T) {
	clock := newFakeClock()
	tracker := NewRateTrackerWithClock(clock)

	tracker.Add(30)
	clock.Advance(3 * time.Second)
	tracker.Sample()

	// Only 3s of history: the 10s and 60s windows fall back to the oldest
	// sample instead of reporting nothing.
	st := tracker.Stats()
	if !approx(st.Rate10s, 10) || !approx(st.Rate60s, 10) {
		t.Errorf("Rate10s=%f Rate60s=%f, want ~10", st.Rate10s, st.Rate60s)
	}
}

func TestRateTracker_Fresh(t *testing.T) {
	st := NewRateTrackerWithClock(newFakeClock()).Stats()
	if st != (RateStats{}) {
		t.Errorf("fresh tracker stats = %+v, want zero", st)
	}
}

func TestRateTracker_RingWraps(t *testing.T) {
	clock := newFakeClock()
	tracker := NewRateTrackerWithClock(clock)

	for i := 0; i < ringSize*3; i++ {
		tracker.Add(2)
		clock.Advance(time.Second)
		tracker.Sample()
	}

	if tracker.SampleCount() != ringSize {
		t.Errorf("SampleCount = %d, want %d", tracker.SampleCount(), ringSize)
	}
	if st := tracker.Stats(); !approx(st.Rate60s, 2) {
		t.Errorf("Rate60s = %f, want ~2 after wrapping", st.Rate60s)
	}
}

func TestRateTracker_Concurrent(t *testing.T) {
	tracker := NewRateTracker()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				tracker.Add(1)
				if j%100 == 0 {
					tracker.Sample()
					_ = tracker.Stats()
				}
			}
		}()
	}
	wg.Wait()

	if got := tracker.Stats().Total; got != 8000 {
		t.Errorf("Total = %d, want 8000", got)
	}
}
