// Package process runs external processes and captures their output.
//
// Start spawns a process with stdout and stderr redirected into pipes and
// returns a Future. The future resolves exactly once, to one of:
//
//   - Completed: the process exited and both streams reached end-of-stream.
//     Every line is captured in order; any exit code is valid data.
//   - Canceled: the context fired first. The process is killed in the
//     background and Wait does not block on that.
//   - LaunchFailed: the OS refused to start the process.
//
// Four goroutines run per process: an exit observer, one collector per
// stream, and a canceller. A join goroutine waits for exit plus both
// end-of-stream signals in any order and only then builds the Result.
// Completion and cancellation race on a compare-and-swap slot; the loser's
// attempt is dropped.
package process

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"
)

// Callbacks contains optional callback functions for run events.
// They are invoked from internal goroutines and must not block.
type Callbacks struct {
	// OnStart is called after the process has been spawned.
	OnStart func(runID string, pid int)

	// OnComplete is called when the run resolves Completed.
	OnComplete func(runID string, res *Result)

	// OnCancel is called when the run resolves Canceled.
	OnCancel func(runID string, err error)

	// OnLaunchFailed is called when the run resolves LaunchFailed.
	OnLaunchFailed func(runID string, err error)

	// OnKillTimeout is called when a canceled process outlives the grace period.
	OnKillTimeout func(runID string, err error)
}

type options struct {
	stdout    *OutputSink
	stderr    *OutputSink
	timeout   time.Duration
	grace     time.Duration
	logger    *slog.Logger
	observer  LineObserver
	callbacks Callbacks
	runID     string
}

// Option configures a single run.
type Option func(*options)

// WithStdoutSink captures stdout into a caller-owned sink, which can be read
// while the process runs. The sink must be fresh; a closed sink drops lines.
// Passing the same sink to WithStderrSink fails the run with ErrSharedSink.
func WithStdoutSink(s *OutputSink) Option {
	return func(o *options) {
		o.stdout = s
	}
}

// WithStderrSink captures stderr into a caller-owned sink.
func WithStderrSink(s *OutputSink) Option {
	return func(o *options) {
		o.stderr = s
	}
}

// WithTimeout cancels the run after d. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithGracePeriod sets how long to wait for a killed process to be reaped
// before reporting a KillTimeoutError. Defaults to DefaultGracePeriod.
func WithGracePeriod(d time.Duration) Option {
	return func(o *options) {
		o.grace = d
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithObserver registers a LineObserver for both streams.
func WithObserver(obs LineObserver) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithCallbacks registers run event callbacks.
func WithCallbacks(cb Callbacks) Option {
	return func(o *options) {
		o.callbacks = cb
	}
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) Option {
	return func(o *options) {
		o.runID = id
	}
}

// Future is the pending result of a run.
type Future struct {
	runID string
	coord *coordinator
	term  *termination
	proc  *RunningProcess // nil when nothing was spawned
}

// Done is closed when the run resolves.
func (f *Future) Done() <-chan struct{} {
	return f.coord.done
}

// Wait blocks until the run resolves.
//
// It returns the Result on completion, an error matching ErrCanceled on
// cancellation, or a *LaunchError when the process never started.
func (f *Future) Wait() (*Result, error) {
	<-f.coord.done
	return f.coord.result, f.coord.err
}

// WaitContext is Wait bounded by ctx. Giving up on the wait does not cancel
// the run.
func (f *Future) WaitContext(ctx context.Context) (*Result, error) {
	select {
	case <-f.coord.done:
		return f.coord.result, f.coord.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Outcome returns the current outcome without blocking.
func (f *Future) Outcome() Outcome {
	return f.coord.Outcome()
}

// Terminated is closed once the process is known to be gone, or once the
// grace period after a kill has expired. For runs that never spawned it is
// closed immediately.
func (f *Future) Terminated() <-chan struct{} {
	return f.term.done
}

// TerminationErr returns a *KillTimeoutError if a canceled process could not
// be confirmed dead, nil otherwise. It returns nil until Terminated closes.
func (f *Future) TerminationErr() error {
	select {
	case <-f.term.done:
		return f.term.err
	default:
		return nil
	}
}

// RunID returns the run identifier.
func (f *Future) RunID() string {
	return f.runID
}

// Process returns the spawned process, or nil if nothing was spawned.
func (f *Future) Process() *RunningProcess {
	return f.proc
}

// Run starts the process and waits for the run to resolve.
func Run(ctx context.Context, spec Spec, opts ...Option) (*Result, error) {
	return Start(ctx, spec, opts...).Wait()
}

// RunCommand runs path with args and waits for the result.
func RunCommand(ctx context.Context, path string, args ...string) (*Result, error) {
	return Run(ctx, Spec{Path: path, Args: args})
}

// StartCommand starts path with args.
func StartCommand(ctx context.Context, path string, args ...string) *Future {
	return Start(ctx, Spec{Path: path, Args: args})
}

// Start spawns the process described by spec and returns its Future.
//
// stdout and stderr are always redirected into pipes regardless of the
// caller's wishes; stdin is the null device. If ctx is already done nothing
// is spawned and the future is resolved Canceled.
func Start(ctx context.Context, spec Spec, opts ...Option) *Future {
	o := options{grace: DefaultGracePeriod}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.runID == "" {
		o.runID = uuid.NewString()
	}
	if o.stdout == nil {
		o.stdout = NewOutputSink()
	}
	if o.stderr == nil {
		o.stderr = NewOutputSink()
	}
	if o.grace <= 0 {
		o.grace = DefaultGracePeriod
	}

	spec = spec.clone()
	logger := o.logger.With("run_id", o.runID)
	f := &Future{
		runID: o.runID,
		coord: newCoordinator(),
		term:  newTermination(),
	}

	if ctx.Err() != nil {
		err := canceledError(context.Cause(ctx))
		f.coord.trySet(OutcomeCanceled, nil, err)
		f.term.finish(nil)
		logger.Debug("run_canceled_before_start", "path", spec.Path)
		if o.callbacks.OnCancel != nil {
			o.callbacks.OnCancel(o.runID, err)
		}
		return f
	}

	var launch *launched
	var err error
	if o.stdout == o.stderr {
		// The first stream to end would close the sink under the other.
		err = ErrSharedSink
	} else {
		launch, err = spawn(spec)
	}
	if err != nil {
		lerr := &LaunchError{Path: spec.Path, Err: err}
		f.coord.trySet(OutcomeLaunchFailed, nil, lerr)
		f.term.finish(nil)
		logger.Warn("launch_failed", "path", spec.Path, "error", err)
		if o.callbacks.OnLaunchFailed != nil {
			o.callbacks.OnLaunchFailed(o.runID, lerr)
		}
		return f
	}

	rp := launch.proc
	f.proc = rp

	logger.Info("run_started",
		"pid", rp.Pid(),
		"path", spec.Path,
		"args", len(spec.Args),
		"precise_start", rp.PreciseStart(),
	)
	if o.callbacks.OnStart != nil {
		o.callbacks.OnStart(o.runID, rp.Pid())
	}

	outC := NewCollector(StreamStdout, launch.stdout, o.stdout, o.observer)
	errC := NewCollector(StreamStderr, launch.stderr, o.stderr, o.observer)
	for _, pipe := range []struct {
		c *Collector
		f *os.File
	}{{outC, launch.stdout}, {errC, launch.stderr}} {
		go func(c *Collector, f *os.File) {
			defer f.Close()
			c.Run()
			bytesRead, linesRead := c.Stats()
			logger.Debug("stream_closed",
				"stream", c.Stream(),
				"lines", linesRead,
				"bytes", bytesRead,
			)
		}(pipe.c, pipe.f)
	}

	exited := make(chan exitInfo, 1)
	exitDone := make(chan struct{})
	go func() {
		waitErr := launch.cmd.Wait()
		at := time.Now()
		rp.markExited(launch.cmd.ProcessState, at)
		exited <- exitInfo{code: extractExitCode(launch.cmd.ProcessState, waitErr), at: at}
		close(exitDone)
		f.term.finish(nil)
	}()

	go func() {
		res, ok := f.coord.join(rp, o.runID, exited, outC.Closed(), errC.Closed())
		if !ok {
			return
		}
		logger.Info("run_completed",
			"pid", rp.Pid(),
			"exit_code", res.ExitCode,
			"run_time", res.RunTime.String(),
			"stdout_lines", len(res.Stdout),
			"stderr_lines", len(res.Stderr),
		)
		for _, c := range []*Collector{outC, errC} {
			if err := c.Err(); err != nil {
				logger.Warn("stream_read_error", "stream", c.Stream(), "error", err)
			}
		}
		if o.callbacks.OnComplete != nil {
			o.callbacks.OnComplete(o.runID, res)
		}
	}()

	watchCtx := ctx
	release := func() {}
	if o.timeout > 0 {
		watchCtx, release = context.WithTimeout(ctx, o.timeout)
	}
	c := &canceller{
		coord:  f.coord,
		proc:   rp,
		exited: exitDone,
		term:   f.term,
		grace:  o.grace,
		logger: logger,
	}
	if cb := o.callbacks.OnCancel; cb != nil {
		c.onCancel = func(err error) { cb(o.runID, err) }
	}
	if cb := o.callbacks.OnKillTimeout; cb != nil {
		c.onKillTimeout = func(err error) { cb(o.runID, err) }
	}
	go func() {
		defer release()
		c.watch(watchCtx)
	}()

	return f
}

// launched holds a spawned process and the parent's read ends of its pipes.
type launched struct {
	cmd    *exec.Cmd
	proc   *RunningProcess
	stdout *os.File
	stderr *os.File
}

// spawn creates the pipes and starts the process.
//
// The pipes are handed to the child as *os.File, so exec.Cmd neither copies
// from them nor closes them in Wait. Wait may therefore run concurrently with
// the collectors, and end-of-stream is decided by the pipe alone.
func spawn(spec Spec) (*launched, error) {
	cmd, err := spec.command()
	if err != nil {
		return nil, err
	}

	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		outR.Close()
		outW.Close()
		return nil, err
	}

	cmd.Stdin = nil
	cmd.Stdout = outW
	cmd.Stderr = errW

	preSpawn := time.Now()
	startErr := cmd.Start()
	postSpawn := time.Now()

	// The child holds its own copies; the parent's write ends must be closed
	// so the read ends see EOF when the child exits.
	outW.Close()
	errW.Close()

	if startErr != nil {
		outR.Close()
		errR.Close()
		return nil, startErr
	}

	start, precise := observeStartTime(cmd.Process.Pid, preSpawn, postSpawn)
	return &launched{
		cmd:    cmd,
		proc:   newRunningProcess(cmd.Process, start, precise),
		stdout: outR,
		stderr: errR,
	}, nil
}
