package orchestrator

import (
	"fmt"
	"io"
	"sync"

	"github.com/randomizedcoder/runproc/internal/process"
)

// echoObserver copies captured lines to the terminal as they arrive.
// Line order is kept within a stream, not across streams.
type echoObserver struct {
	mu     sync.Mutex
	stdout io.Writer
	stderr io.Writer
}

func newEchoObserver(stdout, stderr io.Writer) *echoObserver {
	return &echoObserver{stdout: stdout, stderr: stderr}
}

func (e *echoObserver) ObserveLine(stream process.Stream, line string) {
	w := e.stdout
	if stream == process.StreamStderr {
		w = e.stderr
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fmt.Fprintln(w, line)
}

// multiObserver fans each line out to several observers in order.
type multiObserver []process.LineObserver

func (m multiObserver) ObserveLine(stream process.Stream, line string) {
	for _, obs := range m {
		obs.ObserveLine(stream, line)
	}
}
