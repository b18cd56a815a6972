package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/randomizedcoder/runproc/internal/process"
)

const (
	// MaxLineLength is the longest line kept in the recent-lines buffer.
	// Captured results are never truncated; only this summary copy is.
	MaxLineLength = 4096

	// MaxBufferedLines is the number of recent lines kept per stream.
	MaxBufferedLines = 100
)

// ErrorPatterns are counted across buffered lines for the exit summary.
var ErrorPatterns = []string{
	"error",
	"fatal",
	"panic",
	"timeout",
	"permission denied",
	"connection refused",
	"no such file",
}

// ring is a fixed-size buffer of the most recent lines.
type ring struct {
	lines []string
	next  int
	count int
}

func (r *ring) add(line string) {
	r.lines[r.next] = line
	r.next = (r.next + 1) % len(r.lines)
	if r.count < len(r.lines) {
		r.count++
	}
}

// last returns up to n lines, oldest first.
func (r *ring) last(n int) []string {
	if n > r.count {
		n = r.count
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		idx := (r.next - n + i + len(r.lines)) % len(r.lines)
		out = append(out, r.lines[idx])
	}
	return out
}

// OutputHandler logs a run's captured lines and remembers the most recent
// ones per stream for failure summaries.
//
// It implements process.LineObserver.
type OutputHandler struct {
	runID   string
	logger  *slog.Logger
	verbose bool

	mu      sync.Mutex
	buffers map[process.Stream]*ring
	total   map[process.Stream]int64
}

var _ process.LineObserver = (*OutputHandler)(nil)

// NewOutputHandler creates a handler for one run.
func NewOutputHandler(runID string, logger *slog.Logger, verbose bool) *OutputHandler {
	return &OutputHandler{
		runID:   runID,
		logger:  logger,
		verbose: verbose,
		buffers: map[process.Stream]*ring{
			process.StreamStdout: {lines: make([]string, MaxBufferedLines)},
			process.StreamStderr: {lines: make([]string, MaxBufferedLines)},
		},
		total: make(map[process.Stream]int64, 2),
	}
}

// ObserveLine buffers and logs one captured line.
func (h *OutputHandler) ObserveLine(stream process.Stream, line string) {
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength] + "...(truncated)"
	}

	h.mu.Lock()
	buf, ok := h.buffers[stream]
	if !ok {
		buf = &ring{lines: make([]string, MaxBufferedLines)}
		h.buffers[stream] = buf
	}
	buf.add(line)
	h.total[stream]++
	h.mu.Unlock()

	h.logLine(stream, line)
}

func (h *OutputHandler) logLine(stream process.Stream, line string) {
	level := classifyLine(stream, line)

	// In non-verbose mode, only log warnings and errors
	if !h.verbose && level < slog.LevelWarn {
		return
	}

	h.logger.Log(context.Background(), level, "output_line",
		"run_id", h.runID,
		"stream", stream,
		"line", line,
	)
}

// classifyLine picks the log level for a captured line. Only stderr lines
// that look like failures are raised above debug.
func classifyLine(stream process.Stream, line string) slog.Level {
	if stream != process.StreamStderr {
		return slog.LevelDebug
	}

	lower := strings.ToLower(line)
	if strings.Contains(lower, "fatal") ||
		strings.Contains(lower, "panic:") ||
		strings.Contains(lower, "error") && strings.Contains(lower, "failed") {
		return slog.LevelWarn
	}
	return slog.LevelDebug
}

// RecentLines returns up to n of the most recent lines on stream, oldest first.
func (h *OutputHandler) RecentLines(stream process.Stream, n int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	buf, ok := h.buffers[stream]
	if !ok {
		return nil
	}
	return buf.last(n)
}

// LineCount returns how many lines were observed on stream.
func (h *OutputHandler) LineCount(stream process.Stream) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.total[stream]
}

// CountErrors counts case-insensitive ErrorPatterns matches in the buffered
// stderr lines.
func (h *OutputHandler) CountErrors() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()

	counts := make(map[string]int)
	buf := h.buffers[process.StreamStderr]
	for _, line := range buf.last(buf.count) {
		lower := strings.ToLower(line)
		for _, pattern := range ErrorPatterns {
			if strings.Contains(lower, pattern) {
				counts[pattern]++
			}
		}
	}
	return counts
}
