package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/randomizedcoder/runproc/internal/process"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"trace", slog.LevelInfo},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			if got := ParseLevel(tc.input); got != tc.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tc.input, got, tc.expected)
			}
		})
	}
}

func TestValidLevel(t *testing.T) {
	for _, level := range []string{"debug", "INFO", "warn", "warning", "error"} {
		if !ValidLevel(level) {
			t.Errorf("ValidLevel(%q) = false, want true", level)
		}
	}
	for _, level := range []string{"", "trace", "verbose"} {
		if ValidLevel(level) {
			t.Errorf("ValidLevel(%q) = true, want false", level)
		}
	}
}

func TestNewLogger_Formats(t *testing.T) {
	for _, format := range []string{"json", "text", "JSON", "", "invalid"} {
		t.Run(format, func(t *testing.T) {
			if NewLogger(format, "info", false) == nil {
				t.Error("NewLogger returned nil")
			}
		})
	}
}

func TestNewLoggerWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, "json", "info")
	logger.Info("run_started", "pid", 42)

	output := buf.String()
	if !strings.HasPrefix(output, "{") {
		t.Errorf("expected JSON output, got: %s", output)
	}
	if !strings.Contains(output, `"pid":42`) {
		t.Errorf("expected pid attribute, got: %s", output)
	}
}

func TestNewLoggerWithWriter_DefaultsToText(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, "", "")
	logger.Info("run_completed", "exit_code", 0)

	output := buf.String()
	if strings.HasPrefix(strings.TrimSpace(output), "{") {
		t.Error("default format should be text, not JSON")
	}
	if !strings.Contains(output, "exit_code=0") {
		t.Errorf("expected exit_code=0, got: %s", output)
	}
}

func TestNewLoggerWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, "text", "warn")

	logger.Info("info msg")
	logger.Warn("warn msg")

	output := buf.String()
	if strings.Contains(output, "info msg") {
		t.Error("warn level should not log info messages")
	}
	if !strings.Contains(output, "warn msg") {
		t.Error("warn level should log warn messages")
	}
}

func TestSetDefault(t *testing.T) {
	originalDefault := slog.Default()
	defer slog.SetDefault(originalDefault)

	var buf bytes.Buffer
	SetDefault(NewLoggerWithWriter(&buf, "text", "info"))

	slog.Info("from default logger")
	if !strings.Contains(buf.String(), "from default logger") {
		t.Error("SetDefault did not set the default logger")
	}
}

// OutputHandler tests

func TestOutputHandler_RecentLinesPerStream(t *testing.T) {
	h := NewOutputHandler("run-1", Discard(), false)

	for i := 0; i < 5; i++ {
		h.ObserveLine(process.StreamStdout, "out"+string(rune('0'+i)))
	}
	h.ObserveLine(process.StreamStderr, "err0")

	got := h.RecentLines(process.StreamStdout, 3)
	want := []string{"out2", "out3", "out4"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("RecentLines(stdout, 3) = %v, want %v", got, want)
	}

	if got := h.RecentLines(process.StreamStderr, 10); len(got) != 1 || got[0] != "err0" {
		t.Errorf("RecentLines(stderr, 10) = %v, want [err0]", got)
	}

	if h.LineCount(process.StreamStdout) != 5 {
		t.Errorf("LineCount(stdout) = %d, want 5", h.LineCount(process.StreamStdout))
	}
}

func TestOutputHandler_KeepsEmptyLines(t *testing.T) {
	h := NewOutputHandler("run-1", Discard(), false)
	h.ObserveLine(process.StreamStdout, "")
	h.ObserveLine(process.StreamStdout, "x")

	got := h.RecentLines(process.StreamStdout, 5)
	if len(got) != 2 || got[0] != "" || got[1] != "x" {
		t.Errorf("RecentLines = %q, want [\"\" \"x\"]", got)
	}
}

func TestOutputHandler_RingWraps(t *testing.T) {
	h := NewOutputHandler("run-1", Discard(), false)

	for i := 0; i < MaxBufferedLines+50; i++ {
		h.ObserveLine(process.StreamStderr, strings.Repeat("x", i))
	}

	lines := h.RecentLines(process.StreamStderr, MaxBufferedLines+10)
	if len(lines) != MaxBufferedLines {
		t.Fatalf("got %d lines, want %d", len(lines), MaxBufferedLines)
	}
	if len(lines[len(lines)-1]) != MaxBufferedLines+49 {
		t.Errorf("newest line has length %d, want %d", len(lines[len(lines)-1]), MaxBufferedLines+49)
	}
	if h.LineCount(process.StreamStderr) != MaxBufferedLines+50 {
		t.Errorf("LineCount = %d, want %d", h.LineCount(process.StreamStderr), MaxBufferedLines+50)
	}
}

func TestOutputHandler_Truncation(t *testing.T) {
	h := NewOutputHandler("run-1", Discard(), false)
	h.ObserveLine(process.StreamStdout, strings.Repeat("x", MaxLineLength+100))

	lines := h.RecentLines(process.StreamStdout, 1)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if !strings.HasSuffix(lines[0], "...(truncated)") {
		t.Error("truncated line should end with '...(truncated)'")
	}
}

func TestOutputHandler_LogsByVerbosity(t *testing.T) {
	testCases := []struct {
		name    string
		verbose bool
		stream  process.Stream
		line    string
		logged  bool
	}{
		{"quiet_stdout", false, process.StreamStdout, "hello", false},
		{"quiet_stderr_plain", false, process.StreamStderr, "starting", false},
		{"quiet_stderr_fatal", false, process.StreamStderr, "fatal: bad config", true},
		{"quiet_stderr_panic", false, process.StreamStderr, "panic: nil map", true},
		{"verbose_stdout", true, process.StreamStdout, "hello", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := NewOutputHandler("run-1", NewLoggerWithWriter(&buf, "text", "debug"), tc.verbose)
			h.ObserveLine(tc.stream, tc.line)

			logged := strings.Contains(buf.String(), "output_line")
			if logged != tc.logged {
				t.Errorf("logged = %v, want %v (output: %s)", logged, tc.logged, buf.String())
			}
			if logged && !strings.Contains(buf.String(), "run_id=run-1") {
				t.Errorf("expected run_id attribute, got: %s", buf.String())
			}
		})
	}
}

func TestClassifyLine(t *testing.T) {
	testCases := []struct {
		stream   process.Stream
		line     string
		expected slog.Level
	}{
		{process.StreamStderr, "Error: open failed", slog.LevelWarn},
		{process.StreamStderr, "FATAL crash", slog.LevelWarn},
		{process.StreamStderr, "error count: 0", slog.LevelDebug},
		{process.StreamStderr, "progress 10%", slog.LevelDebug},
		{process.StreamStdout, "fatal", slog.LevelDebug},
	}

	for _, tc := range testCases {
		if got := classifyLine(tc.stream, tc.line); got != tc.expected {
			t.Errorf("classifyLine(%s, %q) = %v, want %v", tc.stream, tc.line, got, tc.expected)
		}
	}
}

func TestOutputHandler_CountErrors(t *testing.T) {
	h := NewOutputHandler("run-1", Discard(), false)
	h.ObserveLine(process.StreamStderr, "Connection refused")
	h.ObserveLine(process.StreamStderr, "read timeout")
	h.ObserveLine(process.StreamStderr, "another timeout")
	h.ObserveLine(process.StreamStdout, "timeout on stdout is ignored")

	counts := h.CountErrors()
	if counts["connection refused"] != 1 {
		t.Errorf("connection refused = %d, want 1", counts["connection refused"])
	}
	if counts["timeout"] != 2 {
		t.Errorf("timeout = %d, want 2", counts["timeout"])
	}
}

func TestOutputHandler_ObservesRealRun(t *testing.T) {
	h := NewOutputHandler("run-1", Discard(), false)

	f := process.Start(t.Context(), process.Spec{Path: "/bin/sh", Args: []string{"-c", "echo a; echo b >&2"}},
		process.WithObserver(h), process.WithLogger(Discard()))
	if _, err := f.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	if got := h.RecentLines(process.StreamStdout, 5); len(got) != 1 || got[0] != "a" {
		t.Errorf("stdout = %v, want [a]", got)
	}
	if got := h.RecentLines(process.StreamStderr, 5); len(got) != 1 || got[0] != "b" {
		t.Errorf("stderr = %v, want [b]", got)
	}
}
