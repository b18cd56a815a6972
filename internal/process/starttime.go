package process

import "time"

// startTolerance is how far outside the spawn window a kernel start time may
// fall and still be accepted. Linux reports boot time in whole seconds, so
// the kernel value can be off by up to a second plus one clock tick.
const startTolerance = time.Second + 10*time.Millisecond

// observeStartTime picks the start time recorded for a run.
func observeStartTime(pid int, preSpawn, postSpawn time.Time) (time.Time, bool) {
	t, ok := osStartTime(pid)
	return pickStartTime(t, ok, preSpawn, postSpawn)
}

// pickStartTime accepts the OS value when it lies within startTolerance of
// [preSpawn, postSpawn] and clamps it into that window. Anything further out
// is a reused pid or clock skew, and the pre-spawn instant is used instead.
// The fallback is an accepted approximation, not an error.
func pickStartTime(t time.Time, ok bool, preSpawn, postSpawn time.Time) (time.Time, bool) {
	if !ok || t.Before(preSpawn.Add(-startTolerance)) || t.After(postSpawn.Add(startTolerance)) {
		return preSpawn, false
	}
	switch {
	case t.Before(preSpawn):
		return preSpawn, true
	case t.After(postSpawn):
		return postSpawn, true
	}
	return t, true
}
