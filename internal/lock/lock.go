// Package lock keeps two workflow runs from acting on the same issues at once.
package lock

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// HeldError is returned by Acquire when a live process holds the lock.
type HeldError struct {
	Path string
	PID  int
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("another run is in progress (pid %d, lock %s)", e.PID, e.Path)
}

// RunLock is a PID file used as an exclusive run lock. A lock left behind by
// a dead process is treated as stale and taken over.
type RunLock struct {
	Path string
	pid  int
}

// New creates a RunLock for the given path.
func New(path string) *RunLock {
	return &RunLock{Path: path, pid: os.Getpid()}
}

// staleAfter is how old an unreadable lock file must be before it is taken over.
const staleAfter = 10 * time.Second

// Acquire takes the lock for the current process. The PID is written to a
// temporary file which is then hard-linked into place, so the lock file never
// exists without its content.
func (l *RunLock) Acquire() error {
	dir := filepath.Dir(l.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(l.Path)+".*")
	if err != nil {
		return fmt.Errorf("create lock: %w", err)
	}
	defer os.Remove(tmp.Name())
	_, werr := tmp.WriteString(strconv.Itoa(l.pid) + "\n")
	if cerr := tmp.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return fmt.Errorf("write lock: %w", werr)
	}

	for attempt := 0; attempt < 2; attempt++ {
		err := os.Link(tmp.Name(), l.Path)
		if err == nil {
			return nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("create lock: %w", err)
		}

		if err := l.checkStale(); err != nil {
			return err
		}
		if err := os.Remove(l.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove stale lock: %w", err)
		}
	}
	return fmt.Errorf("acquire lock %s: lost race with another run", l.Path)
}

// checkStale returns nil when the existing lock may be taken over: its holder
// is dead, or its content is unreadable and older than staleAfter.
func (l *RunLock) checkStale() error {
	pid, err := l.Read()
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case err != nil:
		info, statErr := os.Stat(l.Path)
		if statErr != nil {
			return nil
		}
		if age := time.Since(info.ModTime()); age < staleAfter {
			return fmt.Errorf("lock %s is unreadable and %s old; retry shortly", l.Path, age.Round(time.Second))
		}
		return nil
	case processAlive(pid):
		return &HeldError{Path: l.Path, PID: pid}
	}
	return nil
}

// Release removes the lock if this process holds it.
func (l *RunLock) Release() error {
	pid, err := l.Read()
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if pid != l.pid {
		return fmt.Errorf("lock %s is held by pid %d, not %d", l.Path, pid, l.pid)
	}
	return os.Remove(l.Path)
}

// Read reads the PID recorded in the lock file.
func (l *RunLock) Read() (int, error) {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid lock file content: %w", err)
	}
	return pid, nil
}
