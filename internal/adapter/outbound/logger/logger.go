// Package logger implements the per-day append-only log file: ANSI-
// stripped lines written with a trailing newline, buffered and
// flushed at end-of-loop-iteration, with debounced error reporting to
// the client.
package logger

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mooproxy/mooproxy/internal/domain/line"
)

// ErrorDebounce is the minimum interval between repeated reports of the
// same underlying write error to the client (reference: 30s).
const ErrorDebounce = 30 * time.Second

// Logger owns the append-only log file for a single world. Callers
// submit lines via Write; actual I/O is flushed with Flush, intended
// to be called once per main-loop iteration, matching the reference's
// buffered writes.
type Logger struct {
	mu sync.Mutex

	dir   string
	world string

	enabled bool
	fd      *os.File
	day     int64

	pending []byte

	lastErr     string
	lastErrTime time.Time

	log *slog.Logger
}

// New returns a Logger that writes "<world> - YYYY-MM-DD.log" files
// under dir. Logging is a no-op until SetEnabled(true) is called and a
// file has been opened with Reopen; Write only buffers lines, and
// Flush discards them while no file is open.
func New(dir, world string, log *slog.Logger) *Logger {
	return &Logger{dir: dir, world: world, log: log}
}

// SetEnabled toggles whether lines submitted to Write are persisted.
// Disabling closes any open file.
func (lg *Logger) SetEnabled(enabled bool) {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	lg.enabled = enabled
	if !enabled {
		lg.closeLocked()
	}
}

// pathFor returns the log file path for the day containing t.
func (lg *Logger) pathFor(t time.Time) string {
	name := fmt.Sprintf("%s - %s.log", lg.world, t.Format("2006-01-02"))
	return filepath.Join(lg.dir, name)
}

// Reopen closes the current file (if any) and opens the file for the
// day containing now. The engine calls it when a server connection is
// established, and the world timer's day-rollover hook calls it.
func (lg *Logger) Reopen(now time.Time) error {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	return lg.reopenLocked(now)
}

func (lg *Logger) reopenLocked(now time.Time) error {
	lg.closeLocked()
	if !lg.enabled {
		return nil
	}

	path := lg.pathFor(now)
	fd, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return err
	}
	lg.fd = fd
	lg.day = line.DayOf(now)
	return nil
}

func (lg *Logger) closeLocked() {
	if lg.fd != nil {
		_ = lg.fd.Close()
		lg.fd = nil
	}
}

// Close releases the underlying file descriptor.
func (lg *Logger) Close() {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	lg.closeLocked()
}

// Write strips ANSI from l and appends it to the pending write buffer.
// It does not perform I/O; call Flush to persist.
func (lg *Logger) Write(l *line.Line) {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	if !lg.enabled {
		return
	}
	lg.pending = append(lg.pending, StripANSI(l.Bytes)...)
}

// Flush writes any pending bytes to the open file descriptor. It
// returns a non-empty message exactly once per ErrorDebounce interval
// when writes are failing, for the caller to forward to the client;
// otherwise it returns "".
func (lg *Logger) Flush() string {
	lg.mu.Lock()
	defer lg.mu.Unlock()

	if len(lg.pending) == 0 {
		return ""
	}
	if lg.fd == nil {
		lg.pending = lg.pending[:0]
		return ""
	}

	_, err := lg.fd.Write(lg.pending)
	lg.pending = lg.pending[:0]
	if err == nil {
		lg.lastErr = ""
		return ""
	}

	return lg.reportLocked(err)
}

func (lg *Logger) reportLocked(err error) string {
	msg := err.Error()
	now := time.Now()
	if msg == lg.lastErr && now.Sub(lg.lastErrTime) < ErrorDebounce {
		return ""
	}
	lg.lastErr = msg
	lg.lastErrTime = now
	if lg.log != nil {
		lg.log.Error("log write failed", "world", lg.world, "error", err)
	}
	return fmt.Sprintf("Error writing to logfile: %s", msg)
}

// CurrentDay returns the day ordinal of the currently open log file,
// or -1 if none is open.
func (lg *Logger) CurrentDay() int64 {
	lg.mu.Lock()
	defer lg.mu.Unlock()
	if lg.fd == nil {
		return -1
	}
	return lg.day
}
