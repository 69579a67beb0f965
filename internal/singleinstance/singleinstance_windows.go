//go:build windows

// Package singleinstance ensures only one process owns the scanner at a time.
package singleinstance

import (
	"github.com/graaaaa/roomcheck/internal/appinfo"
	"golang.org/x/sys/windows"
)

// AcquireLock creates a session-scoped named mutex. lockPath is unused on
// Windows; the mutex name comes from appinfo.MutexName.
//
// Returns:
//   - release: function to call when shutting down (use with defer)
//   - ok: true if lock was acquired, false if another instance is running
//   - err: error if something went wrong
//
// Usage:
//
//	release, ok, err := singleinstance.AcquireLock(path)
//	if err != nil { return err }
//	if !ok { return errAlreadyRunning }
//	defer release()
func AcquireLock(lockPath string) (release func(), ok bool, err error) {
	name, err := windows.UTF16PtrFromString(appinfo.MutexName)
	if err != nil {
		return nil, false, err
	}

	h, err := windows.CreateMutex(nil, false, name)
	if err != nil {
		if err == windows.ERROR_ALREADY_EXISTS {
			// The handle refers to the other instance's mutex.
			if h != 0 {
				windows.CloseHandle(h)
			}
			return nil, false, nil
		}
		return nil, false, err
	}

	return func() {
		windows.CloseHandle(h)
	}, true, nil
}
