package stats

import (
	"strconv"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// Table-Driven Tests: Formatting Functions
// =============================================================================

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		want     string
	}{
		{"zero", 0, "00:00:00"},
		{"one second", time.Second, "00:00:01"},
		{"one minute", time.Minute, "00:01:00"},
		{"one hour", time.Hour, "01:00:00"},
		{"mixed", 2*time.Hour + 30*time.Minute + 45*time.Second, "02:30:45"},
		{"24 hours", 24 * time.Hour, "24:00:00"},
		{"sub-second", 500 * time.Millisecond, "00:00:00"},
		{"59 seconds", 59 * time.Second, "00:00:59"},
		{"59 minutes", 59 * time.Minute, "00:59:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDuration(tt.duration); got != tt.want {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.duration, got, tt.want)
			}
		})
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		name string
		n    int64
		want string
	}{
		{"zero", 0, "0"},
		{"small", 123, "123"},
		{"999", 999, "999"},
		{"1K", 1000, "1.0K"},
		{"1.5K", 1500, "1.5K"},
		{"10K", 10000, "10.0K"},
		{"999K", 999000, "999.0K"},
		{"1M", 1000000, "1.0M"},
		{"1.5M", 1500000, "1.5M"},
		{"10M", 10000000, "10.0M"},
		{"negative", -100, "-100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatNumber(tt.n); got != tt.want {
				t.Errorf("FormatNumber(%d) = %q, want %q", tt.n, got, tt.want)
			}
		})
	}
}

func TestFormatMs(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		want     string
	}{
		{"zero", 0, "0 ms"},
		{"1 ms", time.Millisecond, "1 ms"},
		{"100 ms", 100 * time.Millisecond, "100 ms"},
		{"1 second", time.Second, "1000 ms"},
		{"sub-ms", 500 * time.Microsecond, "500 µs"},
		{"1 us", time.Microsecond, "1 µs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatMs(tt.duration); got != tt.want {
				t.Errorf("FormatMs(%v) = %q, want %q", tt.duration, got, tt.want)
			}
		})
	}
}

func TestFormatRate(t *testing.T) {
	tests := []struct {
		name string
		rate float64
		want string
	}{
		{"zero", 0, "0.00/s"},
		{"small", 0.5, "0.50/s"},
		{"one", 1.0, "1.0/s"},
		{"ten", 10.0, "10.0/s"},
		{"hundred", 100.0, "100.0/s"},
		{"thousand", 1000.0, "1.0K/s"},
		{"1.5K", 1500.0, "1.5K/s"},
		{"10K", 10000.0, "10.0K/s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatRate(tt.rate); got != tt.want {
				t.Errorf("FormatRate(%v) = %q, want %q", tt.rate, got, tt.want)
			}
		})
	}
}

func TestExitCodeLabel(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{0, "(clean)"},
		{1, "(error)"},
		{124, "(timeout)"},
		{127, "(not found)"},
		{130, "(SIGINT)"},
		{137, "(SIGKILL)"},
		{143, "(SIGTERM)"},
		{2, ""},
		{-1, ""},
		{255, ""},
	}

	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.code), func(t *testing.T) {
			if got := exitCodeLabel(tt.code); got != tt.want {
				t.Errorf("exitCodeLabel(%d) = %q, want %q", tt.code, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Tests: FormatExitSummary
// =============================================================================

func TestFormatExitSummary_NilStats(t *testing.T) {
	cfg := SummaryConfig{
		TargetRuns:  10,
		Duration:    5 * time.Minute,
		MetricsAddr: "127.0.0.1:9100",
	}

	out := FormatExitSummary(nil, cfg)

	for _, want := range []string{"runproc Exit Summary", "00:05:00", "Target Runs:            10", "No runs were recorded", "http://127.0.0.1:9100/metrics"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func sampleStats() *AggregatedStats {
	return &AggregatedStats{
		Started:           9,
		PeakActive:        4,
		Completed:         8,
		Canceled:          1,
		LaunchFailed:      1,
		ExitCodes:         map[int]int64{0: 6, 2: 1, 137: 1},
		NonZeroExits:      2,
		RunTimeMin:        10 * time.Millisecond,
		RunTimeMean:       50 * time.Millisecond,
		RunTimeP50:        40 * time.Millisecond,
		RunTimeP90:        90 * time.Millisecond,
		RunTimeP95:        95 * time.Millisecond,
		RunTimeP99:        99 * time.Millisecond,
		RunTimeMax:        120 * time.Millisecond,
		StdoutLines:       1500,
		StderrLines:       12,
		CompletionsPerSec: 4,
	}
}

func TestFormatExitSummary_Outcomes(t *testing.T) {
	out := FormatExitSummary(sampleStats(), SummaryConfig{
		Command:    "/bin/flaky --fast",
		TargetRuns: 10,
		Parallel:   4,
		Duration:   2 * time.Second,
	})

	for _, want := range []string{
		"Command:                /bin/flaky --fast",
		"Parallelism:            4 (peak active 4)",
		"Completed",
		"80.0%",
		"Launch failed",
		"Success Rate:         60.0% (exit code 0)",
		"Throughput:           4.0/s",
		"P50 (median):         40 ms",
		"Max:                  120 ms",
		"Stdout Lines:         1.5K",
		"137 (SIGKILL)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}

	if strings.Contains(out, "Footnotes") {
		t.Error("no footnotes expected without failures or kill timeouts")
	}
	if strings.Contains(out, "Metrics endpoint") {
		t.Error("metrics endpoint should be omitted when not configured")
	}
}

func TestFormatExitSummary_ExitCodesSorted(t *testing.T) {
	out := FormatExitSummary(sampleStats(), SummaryConfig{TargetRuns: 10})

	i0 := strings.Index(out, "  0 (clean)")
	i2 := strings.Index(out, "  2 ")
	i137 := strings.Index(out, "137 (SIGKILL)")
	if i0 < 0 || i2 < 0 || i137 < 0 || !(i0 < i2 && i2 < i137) {
		t.Errorf("exit codes not sorted (0=%d, 2=%d, 137=%d):\n%s", i0, i2, i137, out)
	}
}

func TestFormatExitSummary_NoCompletions(t *testing.T) {
	stats := &AggregatedStats{LaunchFailed: 3, ExitCodes: map[int]int64{}}
	out := FormatExitSummary(stats, SummaryConfig{TargetRuns: 3})

	if strings.Contains(out, "Run Time Distribution") {
		t.Error("run time section should be omitted without completed runs")
	}
	if strings.Contains(out, "Exit Codes") {
		t.Error("exit code section should be omitted without completed runs")
	}
	if !strings.Contains(out, "Success Rate:         0.0%") {
		t.Errorf("expected 0%% success rate:\n%s", out)
	}
}

func TestRenderFootnotes_Empty(t *testing.T) {
	if got := renderFootnotes(&AggregatedStats{}); got != "" {
		t.Errorf("renderFootnotes = %q, want empty", got)
	}
}

func TestRenderFootnotes_FailuresAndKillTimeouts(t *testing.T) {
	stats := &AggregatedStats{
		KillTimeouts: 2,
		Failures: []FailureSample{
			{RunID: "run-a", ExitCode: 3, RunTime: 5 * time.Millisecond, StderrTail: []string{"boom", "bang"}},
		},
	}

	out := renderFootnotes(stats)
	for _, want := range []string{
		"Footnotes",
		"[1] 2 canceled process(es)",
		"[2] run run-a exited 3 after 5 ms",
		"stderr: boom",
		"stderr: bang",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("footnotes missing %q:\n%s", want, out)
		}
	}
}

func TestAggregatedStats_Rates(t *testing.T) {
	s := sampleStats()
	if got := s.Resolved(); got != 10 {
		t.Errorf("Resolved = %d, want 10", got)
	}
	if got := s.SuccessRate(); got != 0.6 {
		t.Errorf("SuccessRate = %v, want 0.6", got)
	}
	if got := (&AggregatedStats{}).SuccessRate(); got != 0 {
		t.Errorf("empty SuccessRate = %v, want 0", got)
	}
}
