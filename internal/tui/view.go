package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/randomizedcoder/runproc/internal/stats"
)

// =============================================================================
// Main View Rendering
// =============================================================================

// renderSummaryView renders the main dashboard.
func (m Model) renderSummaryView() string {
	var sections []string

	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderProgress())

	if m.stats != nil {
		sections = append(sections, m.renderOutcomes())
		if m.stats.Completed > 0 {
			sections = append(sections, m.renderRunTimes())
		}
		if m.hasErrors() {
			sections = append(sections, m.renderErrors())
		}
	}

	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderDetailedView renders the exit code table and failure samples.
func (m Model) renderDetailedView() string {
	sections := []string{
		m.renderHeader(),
		m.renderExitCodeTable(),
	}
	if len(m.stats.Failures) > 0 {
		sections = append(sections, m.renderFailures())
	}
	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// =============================================================================
// Header
// =============================================================================

func (m Model) renderHeader() string {
	header := fmt.Sprintf(
		" runproc │ %s │ Active: %d/%d │ Elapsed: %s ",
		GetHealthLabel(m.Health()),
		m.ActiveRuns(),
		m.parallel,
		formatDuration(m.Elapsed()),
	)

	return headerStyle.Width(m.width).Render(header)
}

// =============================================================================
// Progress Section
// =============================================================================

func (m Model) renderProgress() string {
	progress := m.Progress()

	barWidth := m.width - 30
	if barWidth < 20 {
		barWidth = 20
	}
	progressBar := RenderProgressBar(progress, barWidth)

	var status string
	if progress >= 1.0 {
		status = statusOK.Render("✓ All runs resolved")
	} else {
		status = statusInfo.Render(fmt.Sprintf("Running... %d/%d resolved", m.ResolvedRuns(), m.targetRuns))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		sectionHeaderStyle.Render("Progress"),
		progressBar,
		status,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Outcomes
// =============================================================================

func (m Model) renderOutcomes() string {
	s := m.stats

	successRate := s.SuccessRate()
	rows := []string{
		RenderKeyValue("Started", formatNumberWithCommas(s.Started)),
		RenderKeyValue("Completed", formatNumberWithCommas(s.Completed)),
		renderCountRow("Non-zero exits", s.NonZeroExits),
		renderCountRow("Canceled", s.Canceled),
		renderCountRow("Launch failed", s.LaunchFailed),
		renderCountRow("Kill timeouts", s.KillTimeouts),
		lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("Success rate:"),
			GetErrorRateStyle(1-successRate).Render(formatPercent(successRate)),
		),
		RenderKeyValue("Completions", stats.FormatRate(s.CompletionsPerSec)),
		RenderKeyValue("Recent (10s)", stats.FormatRate(s.RecentResolvedPerSec)+" resolved"),
		RenderKeyValue("Output lines", fmt.Sprintf("%s stdout, %s stderr",
			formatNumberWithCommas(s.StdoutLines), formatNumberWithCommas(s.StderrLines))),
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Outcomes")}, rows...)...,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// renderCountRow highlights counts that should be zero.
func renderCountRow(label string, n int64) string {
	style := valueGoodStyle
	if n > 0 {
		style = valueBadStyle
	}
	return lipgloss.JoinHorizontal(lipgloss.Left,
		labelStyle.Render(label+":"),
		style.Render(formatNumberWithCommas(n)),
	)
}

// =============================================================================
// Run Time Distribution
// =============================================================================

func (m Model) renderRunTimes() string {
	s := m.stats

	rows := []string{
		renderRunTimeRow("Min", s.RunTimeMin),
		renderRunTimeRow("P50 (median)", s.RunTimeP50),
		renderRunTimeRow("P90", s.RunTimeP90),
		renderRunTimeRow("P99", s.RunTimeP99),
		renderRunTimeRow("Max", s.RunTimeMax),
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Run Time")}, rows...)...,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

func renderRunTimeRow(label string, d time.Duration) string {
	return RenderKeyValueWide(label, stats.FormatMs(d))
}

// =============================================================================
// Errors
// =============================================================================

func (m Model) hasErrors() bool {
	if m.stats == nil {
		return false
	}
	s := m.stats
	return s.NonZeroExits > 0 || s.LaunchFailed > 0 || s.KillTimeouts > 0
}

func (m Model) renderErrors() string {
	s := m.stats
	var rows []string

	if s.KillTimeouts > 0 {
		rows = append(rows, statusError.Render(
			fmt.Sprintf("%d process(es) outlived the kill grace period", s.KillTimeouts)))
	}
	if s.LaunchFailed > 0 {
		rows = append(rows, statusError.Render(
			fmt.Sprintf("%d run(s) could not be launched", s.LaunchFailed)))
	}
	if len(s.Failures) > 0 {
		last := s.Failures[len(s.Failures)-1]
		line := fmt.Sprintf("Last failure: exit %d after %s", last.ExitCode, stats.FormatMs(last.RunTime))
		rows = append(rows, statusWarning.Render(line))
		for _, l := range last.StderrTail {
			rows = append(rows, dimStyle.Render("  "+truncate(l, m.width-8)))
		}
	}
	rows = append(rows, mutedStyle.Render("press d for exit codes"))

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Errors")}, rows...)...,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Detailed View
// =============================================================================

func (m Model) renderExitCodeTable() string {
	codes := make([]int, 0, len(m.stats.ExitCodes))
	for code := range m.stats.ExitCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)

	header := tableHeaderStyle.Render(fmt.Sprintf("%-10s %12s %10s", "Exit Code", "Runs", "Share"))
	rows := []string{header}
	for i, code := range codes {
		n := m.stats.ExitCodes[code]
		share := 0.0
		if m.stats.Completed > 0 {
			share = float64(n) / float64(m.stats.Completed)
		}
		row := fmt.Sprintf("%-10d %12s %10s", code, formatNumberWithCommas(n), formatPercent(share))
		if i%2 == 0 {
			rows = append(rows, tableRowEvenStyle.Render(row))
		} else {
			rows = append(rows, tableRowOddStyle.Render(row))
		}
	}
	if len(codes) == 0 {
		rows = append(rows, dimStyle.Render("no completed runs yet"))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Exit Codes")}, rows...)...,
	)
	return boxStyle.Width(m.width - 2).Render(content)
}

func (m Model) renderFailures() string {
	var rows []string
	for _, f := range m.stats.Failures {
		rows = append(rows, valueWarnStyle.Render(
			fmt.Sprintf("%s  exit %d  %s", f.RunID, f.ExitCode, stats.FormatMs(f.RunTime))))
		for _, l := range f.StderrTail {
			rows = append(rows, dimStyle.Render("  "+truncate(l, m.width-8)))
		}
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Failure Samples")}, rows...)...,
	)
	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Footer
// =============================================================================

func (m Model) renderFooter() string {
	shortcuts := []string{
		"q: quit",
		"d: toggle details",
		"r: refresh",
	}

	right := "Command: " + truncate(m.command, m.width-60)
	if m.metricsAddr != "" {
		right += " │ Metrics: " + m.metricsAddr
	}

	left := dimStyle.Render(strings.Join(shortcuts, " │ "))
	rightRendered := dimStyle.Render(right)

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(rightRendered) - 2
	if padding < 1 {
		padding = 1
	}

	return footerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Left,
			left,
			strings.Repeat(" ", padding),
			rightRendered,
		),
	)
}

// truncate shortens s to limit runes, marking the cut with "...".
// Limits of 10 or less leave s unchanged.
func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit || limit <= 10 {
		return s
	}
	return string(r[:limit-3]) + "..."
}
