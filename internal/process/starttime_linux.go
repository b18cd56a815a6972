//go:build linux

package process

import (
	"time"

	"github.com/prometheus/procfs"
)

// osStartTime reads the kernel's record of when pid started.
//
// The kernel reports start time as clock ticks since boot and boot time in
// whole seconds, so the result can be off by up to a second. pickStartTime
// checks it against the spawn window.
func osStartTime(pid int) (time.Time, bool) {
	proc, err := procfs.NewProc(pid)
	if err != nil {
		return time.Time{}, false
	}
	stat, err := proc.Stat()
	if err != nil {
		return time.Time{}, false
	}
	secs, err := stat.StartTime()
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(0, int64(secs*float64(time.Second))), true
}
