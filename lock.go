package models

import (
	"context"
	"fmt"
	"os"
	"time"
)

// Locker provides mutual exclusion for writers of the model file.
type Locker interface {
	// Lock acquires an exclusive lock.
	// Blocks until the lock is acquired, the timeout expires or ctx is done.
	Lock(ctx context.Context) error

	// Unlock releases the lock and closes the lock file.
	// Safe to call multiple times.
	Unlock() error
}

// fileLock implements Locker with an OS advisory lock on a sidecar file.
// The platform primitives live in lock_unix.go and lock_windows.go.
type fileLock struct {
	// file is the lock file handle.
	file *os.File

	// timeout is the maximum duration to wait for lock acquisition.
	timeout time.Duration

	// locked tracks whether the lock is currently held.
	locked bool
}

// newFileLock opens (creating if needed) the lock file at path.
func newFileLock(path string, timeout time.Duration) (*fileLock, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	return &fileLock{
		file:    file,
		timeout: timeout,
	}, nil
}

// Lock polls the non-blocking platform lock with backoff until the timeout
// or until ctx is done, whichever comes first.
func (l *fileLock) Lock(ctx context.Context) error {
	if l.locked {
		return nil
	}
	if l.file == nil {
		return fmt.Errorf("lock file closed")
	}

	deadline := time.NewTimer(l.timeout)
	defer deadline.Stop()
	sleepDuration := 10 * time.Millisecond

	for {
		if err := tryLockFile(l.file); err == nil {
			l.locked = true
			return nil
		}

		retry := time.NewTimer(sleepDuration)
		select {
		case <-ctx.Done():
			retry.Stop()
			return fmt.Errorf("waiting for lock: %w", ctx.Err())
		case <-deadline.C:
			retry.Stop()
			return fmt.Errorf("lock timeout after %v", l.timeout)
		case <-retry.C:
		}

		if sleepDuration < 100*time.Millisecond {
			sleepDuration *= 2
		}
	}
}

func (l *fileLock) Unlock() error {
	if l.file == nil {
		return nil
	}

	var unlockErr error
	if l.locked {
		unlockErr = unlockFile(l.file)
		l.locked = false
	}
	l.file.Close()
	l.file = nil

	return unlockErr
}
