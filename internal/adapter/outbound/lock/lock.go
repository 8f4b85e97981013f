// Package lock implements the per-world advisory lock file of §6.3: one
// file per world under ~/.mooproxy/locks/, held exclusively for the
// lifetime of the process managing that world, so a second invocation
// against the same world fails fast instead of racing the first for the
// same listen socket and log files.
package lock

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

// ErrHeld is returned by Acquire when another process already holds the
// lock for this path.
var ErrHeld = errors.New("lock: already held by another process")

// Lock is an acquired advisory lock file. The zero value is not usable;
// obtain one from Acquire.
type Lock struct {
	file *os.File
	path string
}

// Acquire opens (creating if necessary) the lock file at path and takes
// a non-blocking exclusive advisory lock on it. If the lock is already
// held, it returns ErrHeld without blocking. On success the file is
// truncated and the calling process's PID is written into it, mirroring
// the convention of a PID file, though only the flock state (not the
// PID text) is ever consulted to decide whether the lock is free.
func Acquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("lock: open %s: %w", path, err)
	}

	if err := flockLock(f.Fd()); err != nil {
		f.Close()
		if errors.Is(err, errLockHeld) {
			return nil, ErrHeld
		}
		return nil, fmt.Errorf("lock: acquire %s: %w", path, err)
	}

	if err := f.Truncate(0); err == nil {
		f.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0)
	}

	return &Lock{file: f, path: path}, nil
}

// Release unlocks and closes the lock file. It does not remove the file
// from disk: the next Acquire against the same path reuses it.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	flockUnlock(l.file.Fd())
	err := l.file.Close()
	l.file = nil
	return err
}

// Path returns the filesystem path this lock was acquired against.
func (l *Lock) Path() string { return l.path }
