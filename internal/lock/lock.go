// Package lock enforces single-instance execution via an advisory,
// PID-bound lock file (C3, spec.md §4.3), grounded on
// original_source/utils.py's check_and_create_lock_file.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
)

// ErrLockHeld is returned when another live instance already holds the
// lock file, per spec.md §7's LockHeld error kind.
var ErrLockHeld = errors.New("daemon is already running")

// processMarker is looked for in the owning process's cmdline so a stale
// lock naming a PID that has been reused by an unrelated process is not
// mistaken for a live bisyncd instance.
const processMarker = "bisyncd"

// Lock owns an advisory-locked, PID-stamped file for the daemon's
// lifetime.
type Lock struct {
	path string
	fl   *flock.Flock
}

// Acquire attempts to take the single-instance lock at path. If an
// existing lock file names a PID that is alive and whose command line
// contains processMarker, it returns ErrLockHeld. Otherwise it treats the
// file as stale, removes it, and retries once, matching the Python
// original's remove-and-retry behavior.
func Acquire(path string) (*Lock, error) {
	if pid, alive := readLivePID(path); alive {
		return nil, fmt.Errorf("%w (PID: %d)", ErrLockHeld, pid)
	}
	// Either no file, an unreadable one, or one naming a dead/foreign
	// process: clear it before taking our own lock.
	_ = os.Remove(path)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating lock file directory: %w", err)
	}

	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring lock file %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: unable to lock %s, another instance may be starting", ErrLockHeld, path)
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		fl.Unlock()
		return nil, fmt.Errorf("writing PID to lock file: %w", err)
	}

	return &Lock{path: path, fl: fl}, nil
}

// Release unlocks and removes the lock file. Safe to call once at
// shutdown (spec.md §4.8).
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	if err := l.fl.Unlock(); err != nil {
		return err
	}
	return os.Remove(l.path)
}

// readLivePID reads the PID recorded in an existing lock file at path
// and reports whether that PID both exists and looks like a bisyncd
// process, per the original's psutil-based liveness+cmdline check.
func readLivePID(path string) (pid int, alive bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err = strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, false
	}
	if !processExists(pid) {
		return pid, false
	}
	if !commandLineMatches(pid, processMarker) {
		return pid, false
	}
	return pid, true
}

// processExists reports whether a process with the given PID is alive,
// via the null signal (kill(pid, 0)) the way a POSIX liveness check
// conventionally works.
func processExists(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}

// commandLineMatches reads /proc/<pid>/cmdline and checks whether any
// argument contains marker. On platforms without /proc (non-Linux), it
// conservatively assumes a match so a live PID is still treated as held.
func commandLineMatches(pid int, marker string) bool {
	raw, err := os.ReadFile(fmt.Sprintf("/proc/%d/cmdline", pid))
	if err != nil {
		return true
	}
	for _, arg := range strings.Split(string(raw), "\x00") {
		if strings.Contains(arg, marker) {
			return true
		}
	}
	return false
}
