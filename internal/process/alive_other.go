//go:build !unix

package process

import "os"

// pidAlive falls back to FindProcess, which on Windows opens a handle.
func pidAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = p.Release()
	return true
}
