package preflight

import (
	"math"

	"github.com/prometheus/procfs"
)

// maxProcesses returns the soft RLIMIT_NPROC of this process.
// syscall does not export RLIMIT_NPROC, so it is read from /proc/self/limits.
func maxProcesses() (int, error) {
	self, err := procfs.Self()
	if err != nil {
		return 0, err
	}
	limits, err := self.Limits()
	if err != nil {
		return 0, err
	}
	if limits.Processes > math.MaxInt32 {
		// unlimited
		return math.MaxInt32, nil
	}
	return int(limits.Processes), nil
}
