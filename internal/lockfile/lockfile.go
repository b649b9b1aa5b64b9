// Package lockfile keeps two servers from sharing one data directory.
package lockfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofrs/flock"

	apperrors "github.com/shinnku-archive/archivesearch/internal/errors"
)

// Name is the lock file created inside the data directory.
const Name = "serve.lock"

// Lock is a cross-process exclusive lock backed by gofrs/flock.
// Works on all platforms (Unix, Linux, macOS, Windows).
type Lock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// New returns an unlocked lock at <dir>/serve.lock.
func New(dir string) *Lock {
	path := filepath.Join(dir, Name)
	return &Lock{path: path, flock: flock.New(path)}
}

// Acquire takes the lock without blocking. If another process holds it the
// error carries ERR_204_LOCK_HELD.
func Acquire(dir string) (*Lock, error) {
	l := New(dir)
	ok, err := l.TryLock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeLockHeld,
			fmt.Sprintf("another archivesearch server is using %s", dir), nil).
			WithDetail("lock", l.path).
			WithSuggestion("Stop the other server or pick a different data_dir")
	}
	return l, nil
}

// TryLock attempts to acquire the lock without blocking. It reports false if
// the lock is held elsewhere.
func (l *Lock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return false, nil
	}

	l.locked = true
	// Owner pid, for operators inspecting the file.
	_ = os.WriteFile(l.path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
	return true, nil
}

// Unlock releases the lock. Safe to call multiple times.
func (l *Lock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the path to the lock file.
func (l *Lock) Path() string {
	return l.path
}

// IsLocked reports whether this Lock holds the lock.
func (l *Lock) IsLocked() bool {
	return l.locked
}
