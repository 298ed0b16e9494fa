//go:build windows

package lock

import (
	"os"
	"syscall"
)

// processAlive reports whether pid names a live process. FindProcess always
// succeeds on Windows, so a zero signal is used as the probe.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
