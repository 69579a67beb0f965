//go:build !windows

// Package singleinstance ensures only one process owns the scanner at a time.
package singleinstance

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// AcquireLock takes an exclusive, non-blocking flock on lockPath.
//
// Returns:
//   - release: unlocks and closes the lock file (use with defer)
//   - ok: false if another process holds the lock
//   - err: error if the lock file could not be opened or locked
//
// The lock is tied to the open file, so it disappears if the process dies.
func AcquireLock(lockPath string) (release func(), ok bool, err error) {
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, false, fmt.Errorf("open lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("flock: %w", err)
	}

	// Record the owner for humans inspecting the file.
	if err := f.Truncate(0); err == nil {
		fmt.Fprintf(f, "%d\n", os.Getpid())
	}

	return func() {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
	}, true, nil
}
