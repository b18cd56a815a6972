package process

import "sync"

// Stream identifies one of the two captured output streams.
type Stream string

const (
	// StreamStdout is the child's standard output.
	StreamStdout Stream = "stdout"

	// StreamStderr is the child's standard error.
	StreamStderr Stream = "stderr"
)

// OutputSink is an ordered, growing sequence of lines with an open/closed flag.
//
// Exactly one Collector appends to a sink. Callers may read Lines at any time
// to observe output incrementally; once Closed reports true the contents are
// final. Each sink has its own lock, so stdout and stderr never contend.
type OutputSink struct {
	mu     sync.Mutex
	lines  []string
	closed bool
}

// NewOutputSink returns an empty, open sink.
func NewOutputSink() *OutputSink {
	return &OutputSink{lines: make([]string, 0, 16)}
}

// append adds a line. Lines appended after close are dropped; only the
// owning collector writes, and it never writes after closing.
func (s *OutputSink) append(line string) {
	s.mu.Lock()
	if !s.closed {
		s.lines = append(s.lines, line)
	}
	s.mu.Unlock()
}

// close transitions the sink to closed and returns the final snapshot.
// Subsequent calls return a fresh copy of the same contents.
func (s *OutputSink) close() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.copyLocked()
}

// Lines returns a copy of the lines captured so far. Never nil.
func (s *OutputSink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

// Len returns the number of lines captured so far.
func (s *OutputSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}

// Closed reports whether the stream has reached end-of-stream.
func (s *OutputSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *OutputSink) copyLocked() []string {
	out := make([]string, len(s.lines))
	copy(out, s.lines)
	return out
}
