// Package line implements the fundamental datum of the proxy engine: a
// single logical line of bytes, and the bounded FIFO queue it lives in.
package line

import "time"

// Flag is a bitfield of per-line attributes.
type Flag uint8

const (
	// DontLog marks a line that must never reach the logger.
	DontLog Flag = 1 << iota
	// DontBuffer marks a line that must never enter the buffered queue.
	DontBuffer
	// NoHistory marks a line that must never enter the history queue.
	NoHistory
	// Recalled marks a line manufactured by the recall subsystem.
	Recalled
	// Message marks a proxy-originated informational line.
	Message
	// Checkpoint marks a proxy-originated line that is also persisted to
	// the buffered queue so it survives a reconnect.
	Checkpoint
)

// MCP is the flag set carried by MCP protocol lines: never logged, never
// buffered, never historized.
const MCP = DontLog | DontBuffer | NoHistory

// regularFlags is the flag set of ordinary server/client traffic.
const regularFlags Flag = 0

// byteCost is the fixed per-line overhead charged against a queue's
// cached length, approximating object overhead the way the reference
// implementation's LINE_BYTE_COST does.
const byteCost = 64

// Line is a single logical line: byte payload plus metadata. When
// resident in a Queue it also carries sibling pointers; a Line belongs
// to at most one Queue at a time.
type Line struct {
	Bytes []byte
	Flags Flag

	// Created is the wallclock time the line was created.
	Created time.Time
	// Day is the number of days since the epoch, used for log-rollover
	// comparisons; cheaper to compare than re-deriving from Created.
	Day int64

	// Seq is an ambient, monotonically increasing sequence number
	// assigned by the owning Queue at Append. It has no effect on any
	// spec'd algorithm; it exists only so tests can assert FIFO order
	// and so log lines can be correlated across restarts.
	Seq uint64

	next, prev *Line
}

// New creates a Line from the given bytes, stamped with the current
// wallclock time and day. The trailing newline, when the line
// originated externally, is part of b.
func New(b []byte, flags Flag) *Line {
	now := time.Now()
	return &Line{
		Bytes:   b,
		Flags:   flags,
		Created: now,
		Day:     DayOf(now),
	}
}

// DayOf returns the day-ordinal (days since the Unix epoch) for t, in
// t's local timezone, matching the reference's current_day().
func DayOf(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location()).Unix() / 86400
}

// Len returns the byte length of the line's payload.
func (l *Line) Len() int { return len(l.Bytes) }

// Has reports whether all bits in f are set on the line's flags.
func (l *Line) Has(f Flag) bool { return l.Flags&f == f }

// Dup returns a deep copy of l with fresh sibling pointers (nil) and a
// Seq of zero; the caller must re-append it to a queue to
// receive a new Seq.
func (l *Line) Dup() *Line {
	b := make([]byte, len(l.Bytes))
	copy(b, l.Bytes)
	return &Line{
		Bytes:   b,
		Flags:   l.Flags,
		Created: l.Created,
		Day:     l.Day,
	}
}
