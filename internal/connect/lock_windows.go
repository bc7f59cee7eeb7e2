//go:build windows

package connect

import (
	"errors"
	"os"
)

// InstanceLock keeps two local agents from chasing the same session slot.
// On Windows it atomically creates a lock file; creation fails while
// another process owns the lock.
type InstanceLock struct {
	path   string
	locked bool
}

// NewInstanceLock creates an InstanceLock for the given path.
func NewInstanceLock(path string) *InstanceLock {
	return &InstanceLock{path: path}
}

// TryLock attempts to acquire the lock without blocking.
// Returns true if the lock was acquired, false if another process holds it.
func (l *InstanceLock) TryLock() (bool, error) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		return false, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(l.path)
		return false, err
	}
	l.locked = true
	return true, nil
}

// Unlock releases the lock and removes the lock file.
func (l *InstanceLock) Unlock() error {
	if !l.locked {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	l.locked = false
	return nil
}
