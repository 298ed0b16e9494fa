//go:build !windows

package lock

import "syscall"

// processAlive sends signal 0, which checks for existence without signalling.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return syscall.Kill(pid, 0) == nil
}
