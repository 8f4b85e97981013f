//go:build windows

package lock

import (
	"errors"

	"golang.org/x/sys/windows"
)

// errLockHeld is the sentinel flockLock returns when the lock is
// already held by another process; Acquire translates it to ErrHeld.
var errLockHeld = errors.New("lock: held")

// flockLock takes a non-blocking exclusive lock on fd using LockFileEx.
func flockLock(fd uintptr) error {
	var ol windows.Overlapped
	err := windows.LockFileEx(windows.Handle(fd),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		0, 1, 0, &ol)
	if errors.Is(err, windows.ERROR_LOCK_VIOLATION) {
		return errLockHeld
	}
	return err
}

// flockUnlock releases the lock on fd.
func flockUnlock(fd uintptr) error {
	var ol windows.Overlapped
	return windows.UnlockFileEx(windows.Handle(fd), 0, 1, 0, &ol)
}
