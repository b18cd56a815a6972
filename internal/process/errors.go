package process

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the process package.
var (
	// ErrLaunchFailed matches every *LaunchError.
	ErrLaunchFailed = errors.New("process launch failed")

	// ErrCanceled is returned by Future.Wait when cancellation won the race
	// against natural completion.
	ErrCanceled = errors.New("process run canceled")

	// ErrKillTimeout matches every *KillTimeoutError.
	ErrKillTimeout = errors.New("process did not terminate within grace period")

	// ErrCredentialUnsupported is wrapped in a LaunchError when the platform
	// cannot honor the requested Credential.
	ErrCredentialUnsupported = errors.New("credential not supported on this platform")

	// ErrSharedSink is wrapped in a LaunchError when stdout and stderr were
	// given the same OutputSink.
	ErrSharedSink = errors.New("stdout and stderr share one output sink")
)

// LaunchError reports that the OS refused to start the process.
// No process or streams exist when it is returned.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying OS error.
func (e *LaunchError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrLaunchFailed.
func (e *LaunchError) Is(target error) bool {
	return target == ErrLaunchFailed
}

// KillTimeoutError reports that a canceled process was sent SIGKILL but was
// still not reaped after the grace period. The process may still be running.
type KillTimeoutError struct {
	Pid   int
	Grace time.Duration
}

func (e *KillTimeoutError) Error() string {
	return fmt.Sprintf("pid %d still running %s after kill", e.Pid, e.Grace)
}

// Is reports whether target is ErrKillTimeout.
func (e *KillTimeoutError) Is(target error) bool {
	return target == ErrKillTimeout
}

// canceledError joins ErrCanceled with the context's cause so callers can
// tell an explicit cancel from a deadline.
func canceledError(cause error) error {
	if cause == nil {
		return ErrCanceled
	}
	return fmt.Errorf("%w: %w", ErrCanceled, cause)
}
