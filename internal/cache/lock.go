package cache

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// rebuildLock serializes index rebuilds across processes sharing a cache
// directory. Works on Unix, Linux, macOS, and Windows.
type rebuildLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// newRebuildLock creates a lock at <dir>/.rebuild.lock.
func newRebuildLock(dir string) *rebuildLock {
	lockPath := filepath.Join(dir, ".rebuild.lock")
	return &rebuildLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// Lock acquires the exclusive lock, blocking until available.
func (l *rebuildLock) Lock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("creating lock directory: %w", err)
	}

	if err := l.flock.Lock(); err != nil {
		return fmt.Errorf("acquiring rebuild lock: %w", err)
	}

	l.locked = true
	return nil
}

// Unlock releases the lock. Safe to call when not held.
func (l *rebuildLock) Unlock() error {
	if !l.locked {
		return nil
	}

	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("releasing rebuild lock: %w", err)
	}
	return nil
}
