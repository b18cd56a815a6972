package swarm

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/randomizedcoder/runproc/internal/fixture"
	"github.com/randomizedcoder/runproc/internal/process"
)

func TestMain(m *testing.M) {
	if fixture.Active() {
		os.Exit(fixture.Main(os.Args[1:]))
	}
	os.Exit(m.Run())
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixtureSpec(a fixture.Args) process.Spec {
	return process.Spec{
		Path: os.Args[0],
		Args: a.Strings(),
		Env:  fixture.Env(),
	}
}
