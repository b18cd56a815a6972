//go:build !linux

package process

import "time"

// osStartTime is unavailable off Linux; the pre-spawn wall clock is used.
func osStartTime(int) (time.Time, bool) {
	return time.Time{}, false
}
