package shared

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// InstanceLock guards the last-session slot so only one player writes it at a time.
type InstanceLock struct {
	lock *flock.Flock
}

// AcquireInstanceLock takes an exclusive, non-blocking lock next to the database file.
//
// Returns [ErrAlreadyRunning] when another process holds it.
func AcquireInstanceLock(dbPath string) (*InstanceLock, error) {
	dir := os.TempDir()
	if dbPath != "" && dbPath != ":memory:" {
		dir = filepath.Dir(dbPath)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	l := flock.New(filepath.Join(dir, "drivecast.lock"))
	ok, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}
	return &InstanceLock{lock: l}, nil
}

// Release drops the lock; safe to call on a nil lock.
func (l *InstanceLock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}
