//go:build !windows

package lock

import (
	"errors"

	"golang.org/x/sys/unix"
)

// errLockHeld is the sentinel flockLock returns when the lock is
// already held by another process; Acquire translates it to ErrHeld.
var errLockHeld = errors.New("lock: held")

// flockLock takes a non-blocking exclusive flock on fd.
func flockLock(fd uintptr) error {
	err := unix.Flock(int(fd), unix.LOCK_EX|unix.LOCK_NB)
	if errors.Is(err, unix.EWOULDBLOCK) {
		return errLockHeld
	}
	return err
}

// flockUnlock releases the flock on fd.
func flockUnlock(fd uintptr) error {
	return unix.Flock(int(fd), unix.LOCK_UN)
}
