package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/runproc/internal/stats"
)

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to update the display.
type TickMsg time.Time

// StatsMsg carries updated statistics.
type StatsMsg struct {
	Stats *stats.AggregatedStats
}

// QuitMsg signals the TUI should exit.
type QuitMsg struct{}

// =============================================================================
// Model
// =============================================================================

// Model represents the TUI state.
type Model struct {
	// Configuration
	targetRuns  int
	parallel    int
	command     string
	metricsAddr string

	// Current state
	stats        *stats.AggregatedStats
	startTime    time.Time
	lastUpdate   time.Time
	detailedView bool

	// Display options
	width  int
	height int

	statsSource StatsSource

	quitting bool
}

// StatsSource provides aggregated statistics. *stats.Aggregator satisfies it.
type StatsSource interface {
	Aggregate() *stats.AggregatedStats
}

// Config holds TUI configuration.
type Config struct {
	TargetRuns  int
	Parallel    int
	Command     string
	MetricsAddr string
	StatsSource StatsSource
}

// New creates a new TUI model.
func New(cfg Config) Model {
	return Model{
		targetRuns:  cfg.TargetRuns,
		parallel:    cfg.Parallel,
		command:     cfg.Command,
		metricsAddr: cfg.MetricsAddr,
		statsSource: cfg.StatsSource,
		startTime:   time.Now(),
		lastUpdate:  time.Now(),
		width:       80,
		height:      24,
	}
}

// =============================================================================
// Bubble Tea Interface
// =============================================================================

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "d":
			m.detailedView = !m.detailedView
			return m, nil
		case "r":
			// Force refresh
			return m, tickCmd()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		if m.statsSource != nil {
			m.stats = m.statsSource.Aggregate()
		}
		m.lastUpdate = time.Now()
		return m, tickCmd()

	case StatsMsg:
		m.stats = msg.Stats
		m.lastUpdate = time.Now()
		return m, nil

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if m.detailedView && m.stats != nil {
		return m.renderDetailedView()
	}
	return m.renderSummaryView()
}

// =============================================================================
// Commands
// =============================================================================

// tickCmd returns a command that sends a tick after 500ms.
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// =============================================================================
// Accessors
// =============================================================================

// Elapsed returns the time since the swarm started.
func (m Model) Elapsed() time.Duration {
	return time.Since(m.startTime)
}

// ActiveRuns returns the number of processes currently running.
func (m Model) ActiveRuns() int {
	if m.stats == nil {
		return 0
	}
	return m.stats.Active
}

// ResolvedRuns returns how many runs have reached an outcome.
func (m Model) ResolvedRuns() int64 {
	if m.stats == nil {
		return 0
	}
	return m.stats.Resolved()
}

// TargetRuns returns the target run count.
func (m Model) TargetRuns() int {
	return m.targetRuns
}

// Progress returns the fraction of runs resolved (0.0 to 1.0).
func (m Model) Progress() float64 {
	if m.targetRuns == 0 {
		return 0
	}
	p := float64(m.ResolvedRuns()) / float64(m.targetRuns)
	if p > 1 {
		p = 1
	}
	return p
}

// FailureRate returns the fraction of resolved runs that did not complete
// with exit code 0.
func (m Model) FailureRate() float64 {
	if m.stats == nil || m.stats.Resolved() == 0 {
		return 0
	}
	return 1 - m.stats.SuccessRate()
}

// Health returns the overall swarm status.
func (m Model) Health() HealthStatus {
	var killTimeouts int64
	if m.stats != nil {
		killTimeouts = m.stats.KillTimeouts
	}
	return GetHealthStatus(m.FailureRate(), killTimeouts)
}

// =============================================================================
// Helper for external use
// =============================================================================

// SendStats sends a stats update to the TUI.
func SendStats(p *tea.Program, stats *stats.AggregatedStats) {
	if p != nil {
		p.Send(StatsMsg{Stats: stats})
	}
}

// SendQuit sends a quit message to the TUI.
func SendQuit(p *tea.Program) {
	if p != nil {
		p.Send(QuitMsg{})
	}
}

// =============================================================================
// Formatting Helpers (used by view.go)
// =============================================================================

// formatDuration formats a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// formatNumberWithCommas formats a number with thousand separators.
func formatNumberWithCommas(n int64) string {
	if n < 0 {
		return "0"
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}

	str := fmt.Sprintf("%d", n)
	result := ""
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(c)
	}
	return result
}

// formatPercent formats a fraction as a percentage.
func formatPercent(value float64) string {
	return fmt.Sprintf("%.1f%%", value*100)
}
