//go:build !linux

package preflight

import "errors"

func maxProcesses() (int, error) {
	return 0, errors.New("process limit not available on this platform")
}
