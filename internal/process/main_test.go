package process

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/randomizedcoder/runproc/internal/fixture"
)

func TestMain(m *testing.M) {
	if fixture.Active() {
		os.Exit(fixture.Main(os.Args[1:]))
	}
	os.Exit(m.Run())
}

// =============================================================================
// Test Helpers
// =============================================================================

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixtureSpec re-executes the test binary as the fixture child.
func fixtureSpec(a fixture.Args) Spec {
	return Spec{
		Path: os.Args[0],
		Args: a.Strings(),
		Env:  fixture.Env(),
	}
}

// expectedLines returns "line #1" … "line #n".
func expectedLines(n int) []string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fixture.Line(i + 1)
	}
	return lines
}
