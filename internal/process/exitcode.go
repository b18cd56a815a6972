package process

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// extractExitCode extracts the exit code from a Wait() result.
func extractExitCode(state *os.ProcessState, err error) int {
	if state == nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			state = exitErr.ProcessState
		}
	}
	if state == nil {
		if err == nil {
			return 0
		}
		// Unknown error, assume exit code 1
		return 1
	}

	if status, ok := state.Sys().(syscall.WaitStatus); ok {
		if status.Signaled() {
			// Signal exit: 128 + signal number
			return 128 + int(status.Signal())
		}
		return status.ExitStatus()
	}

	return state.ExitCode()
}
