package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// SummaryConfig holds configuration for summary formatting.
type SummaryConfig struct {
	// Command is the command line that was run
	Command string

	// TargetRuns is the number of runs that were requested
	TargetRuns int

	// Parallel is the concurrency limit
	Parallel int

	// Duration is the total swarm duration
	Duration time.Duration

	// MetricsAddr is the Prometheus metrics endpoint address
	MetricsAddr string
}

const (
	heavyRule = "═══════════════════════════════════════════════════════════════════════════════\n"
	lightRule = "───────────────────────────────────────────────────────────────────────────────\n"
	ruleWidth = 79
)

// FormatExitSummary formats aggregated stats for display at program exit.
func FormatExitSummary(stats *AggregatedStats, cfg SummaryConfig) string {
	if stats == nil {
		return formatBasicSummary(cfg)
	}

	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(heavyRule)
	b.WriteString("                            runproc Exit Summary\n")
	b.WriteString(heavyRule + "\n")

	// Run info
	if cfg.Command != "" {
		fmt.Fprintf(&b, "Command:                %s\n", cfg.Command)
	}
	fmt.Fprintf(&b, "Run Duration:           %s\n", FormatDuration(cfg.Duration))
	fmt.Fprintf(&b, "Target Runs:            %d\n", cfg.TargetRuns)
	fmt.Fprintf(&b, "Parallelism:            %d (peak active %d)\n\n", cfg.Parallel, stats.PeakActive)

	// Outcomes
	writeSection(&b, "Outcomes")
	resolved := stats.Resolved()
	fmt.Fprintf(&b, "  %-20s %12s %12s\n", "Outcome", "Runs", "Share")
	b.WriteString("  " + strings.Repeat("─", 46) + "\n")
	for _, row := range []struct {
		label string
		count int64
	}{
		{"Completed", stats.Completed},
		{"Canceled", stats.Canceled},
		{"Launch failed", stats.LaunchFailed},
	} {
		fmt.Fprintf(&b, "  %-20s %12s %11.1f%%\n", row.label, FormatNumber(row.count), percent(row.count, resolved))
	}
	fmt.Fprintf(&b, "\n  Success Rate:         %.1f%% (exit code 0)\n", stats.SuccessRate()*100)
	fmt.Fprintf(&b, "  Throughput:           %s\n\n", FormatRate(stats.CompletionsPerSec))

	// Run time distribution
	if stats.Completed > 0 {
		writeSection(&b, "Run Time Distribution")
		fmt.Fprintf(&b, "  Min:                  %s\n", FormatMs(stats.RunTimeMin))
		fmt.Fprintf(&b, "  Mean:                 %s\n", FormatMs(stats.RunTimeMean))
		fmt.Fprintf(&b, "  P50 (median):         %s\n", FormatMs(stats.RunTimeP50))
		fmt.Fprintf(&b, "  P90:                  %s\n", FormatMs(stats.RunTimeP90))
		fmt.Fprintf(&b, "  P95:                  %s\n", FormatMs(stats.RunTimeP95))
		fmt.Fprintf(&b, "  P99:                  %s\n", FormatMs(stats.RunTimeP99))
		fmt.Fprintf(&b, "  Max:                  %s\n\n", FormatMs(stats.RunTimeMax))
	}

	// Captured output
	if stats.StdoutLines > 0 || stats.StderrLines > 0 {
		writeSection(&b, "Captured Output")
		fmt.Fprintf(&b, "  Stdout Lines:         %s\n", FormatNumber(stats.StdoutLines))
		fmt.Fprintf(&b, "  Stderr Lines:         %s\n\n", FormatNumber(stats.StderrLines))
	}

	// Exit codes
	if len(stats.ExitCodes) > 0 {
		writeSection(&b, "Exit Codes")

		codes := make([]int, 0, len(stats.ExitCodes))
		for code := range stats.ExitCodes {
			codes = append(codes, code)
		}
		sort.Ints(codes)

		for _, code := range codes {
			fmt.Fprintf(&b, "  %3d %-16s %d\n", code, exitCodeLabel(code), stats.ExitCodes[code])
		}
		b.WriteString("\n")
	}

	if footnotes := renderFootnotes(stats); footnotes != "" {
		b.WriteString(footnotes)
	}

	if cfg.MetricsAddr != "" {
		fmt.Fprintf(&b, "Metrics endpoint was: http://%s/metrics\n", cfg.MetricsAddr)
	}

	b.WriteString(heavyRule)

	return b.String()
}

func writeSection(b *strings.Builder, title string) {
	b.WriteString(lightRule)
	pad := max((ruleWidth-len(title))/2, 0)
	b.WriteString(strings.Repeat(" ", pad) + title + "\n")
	b.WriteString(lightRule + "\n")
}

// formatBasicSummary formats a basic summary when stats are not available.
func formatBasicSummary(cfg SummaryConfig) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(heavyRule)
	b.WriteString("                            runproc Exit Summary\n")
	b.WriteString(heavyRule + "\n")

	fmt.Fprintf(&b, "Run Duration:           %s\n", FormatDuration(cfg.Duration))
	fmt.Fprintf(&b, "Target Runs:            %d\n\n", cfg.TargetRuns)

	b.WriteString("(No runs were recorded)\n\n")

	if cfg.MetricsAddr != "" {
		fmt.Fprintf(&b, "Metrics endpoint was: http://%s/metrics\n", cfg.MetricsAddr)
	}

	b.WriteString(heavyRule)

	return b.String()
}

// renderFootnotes adds diagnostic info that doesn't belong in main metrics.
func renderFootnotes(stats *AggregatedStats) string {
	var footnotes []string

	if stats.KillTimeouts > 0 {
		footnotes = append(footnotes, fmt.Sprintf(
			"[1] %d canceled process(es) were not confirmed dead within the grace period",
			stats.KillTimeouts))
	}

	for _, f := range stats.Failures {
		note := fmt.Sprintf("[2] run %s exited %d after %s", f.RunID, f.ExitCode, FormatMs(f.RunTime))
		for _, line := range f.StderrTail {
			note += "\n      stderr: " + line
		}
		footnotes = append(footnotes, note)
	}

	if len(footnotes) == 0 {
		return ""
	}

	var b strings.Builder
	writeSection(&b, "Footnotes")
	for _, fn := range footnotes {
		fmt.Fprintf(&b, "  %s\n", fn)
	}
	b.WriteString("\n")
	return b.String()
}

func percent(n, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) * 100 / float64(total)
}

// exitCodeLabel returns a human-readable label for common exit codes.
func exitCodeLabel(code int) string {
	switch code {
	case 0:
		return "(clean)"
	case 1:
		return "(error)"
	case 124:
		return "(timeout)"
	case 126:
		return "(not executable)"
	case 127:
		return "(not found)"
	case 130:
		return "(SIGINT)"
	case 137:
		return "(SIGKILL)"
	case 143:
		return "(SIGTERM)"
	default:
		return ""
	}
}

// =============================================================================
// Formatting Helper Functions (exported for reuse)
// =============================================================================

// FormatDuration formats a duration as HH:MM:SS.
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatNumber formats a number with K/M suffixes for readability.
func FormatNumber(n int64) string {
	if n >= 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	}
	return fmt.Sprintf("%d", n)
}

// FormatMs formats a duration as milliseconds.
func FormatMs(d time.Duration) string {
	ms := d.Milliseconds()
	if ms == 0 && d > 0 {
		// Sub-millisecond, show microseconds
		return fmt.Sprintf("%d µs", d.Microseconds())
	}
	return fmt.Sprintf("%d ms", ms)
}

// FormatRate formats a rate with appropriate precision.
func FormatRate(rate float64) string {
	if rate >= 1000 {
		return fmt.Sprintf("%.1fK/s", rate/1000)
	}
	if rate >= 1 {
		return fmt.Sprintf("%.1f/s", rate)
	}
	return fmt.Sprintf("%.2f/s", rate)
}
