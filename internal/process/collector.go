package process

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"sync/atomic"
)

// LineObserver sees every captured line as it arrives, before the run
// resolves. It is called from both collector goroutines and must be safe
// for concurrent use.
type LineObserver interface {
	ObserveLine(stream Stream, line string)
}

// Collector pumps one redirected output pipe into an OutputSink.
//
// Usage:
//  1. pr, pw, _ := os.Pipe()
//  2. c := NewCollector(StreamStdout, pr, sink, nil)
//  3. cmd.Stdout = pw; cmd.Start(); pw.Close()
//  4. go c.Run()
//  5. lines := <-c.Closed()
type Collector struct {
	stream   Stream
	reader   io.Reader
	sink     *OutputSink
	observer LineObserver
	closed   chan []string

	// Stats (atomic for thread-safety)
	bytesRead atomic.Int64
	linesRead atomic.Int64

	// err is written before the snapshot is sent on closed.
	err error
}

// NewCollector creates a collector for one stream. observer may be nil.
func NewCollector(stream Stream, r io.Reader, sink *OutputSink, observer LineObserver) *Collector {
	return &Collector{
		stream:   stream,
		reader:   r,
		sink:     sink,
		observer: observer,
		closed:   make(chan []string, 1),
	}
}

// Run reads lines until end-of-stream, then closes the sink and delivers its
// snapshot on Closed. A read error other than EOF ends the stream the same way
// and is reported by Err.
//
// bufio.Reader is used instead of bufio.Scanner so lines of any length are
// kept whole.
func (c *Collector) Run() {
	br := bufio.NewReaderSize(c.reader, 64*1024)

	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			c.bytesRead.Add(int64(len(line)))
			c.emit(trimEOL(line))
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.err = err
			}
			break
		}
	}

	c.closed <- c.sink.close()
}

func (c *Collector) emit(line string) {
	c.linesRead.Add(1)
	c.sink.append(line)
	if c.observer != nil {
		c.observer.ObserveLine(c.stream, line)
	}
}

// Closed delivers the final snapshot exactly once, after end-of-stream.
func (c *Collector) Closed() <-chan []string {
	return c.closed
}

// Stream returns which stream this collector reads.
func (c *Collector) Stream() Stream {
	return c.stream
}

// Stats returns (bytesRead, linesRead).
func (c *Collector) Stats() (bytesRead int64, linesRead int64) {
	return c.bytesRead.Load(), c.linesRead.Load()
}

// Err returns the read error that ended the stream early, if any.
// Only valid after the snapshot has been received from Closed.
func (c *Collector) Err() error {
	return c.err
}

// trimEOL strips one trailing "\n" or "\r\n".
func trimEOL(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}
