// Package netio implements the line framer, the listener/authentication
// state machine, and the outbound connector with its reconnect backoff.
package netio

import "github.com/mooproxy/mooproxy/internal/domain/line"

// BufferSize is the fixed size of a framer's raw byte buffer (the
// reference uses 100 KiB).
const BufferSize = 100 * 1024

// Framer turns a raw byte stream into a sequence of logical Lines,
// splitting on newline bytes. Each side of a connection (client,
// server) owns one Framer.
type Framer struct {
	buf []byte
	n   int
}

// NewFramer returns an empty Framer with a BufferSize-byte backing
// buffer.
func NewFramer() *Framer {
	return &Framer{buf: make([]byte, BufferSize)}
}

// Space returns the number of free bytes remaining in the buffer, i.e.
// how many bytes a caller may read into via FillSlice.
func (f *Framer) Space() int { return len(f.buf) - f.n }

// FillSlice returns the writable tail of the buffer, B[n..], for the
// caller to read(2) into directly.
func (f *Framer) FillSlice() []byte { return f.buf[f.n:] }

// Commit records that n additional bytes were placed into the slice
// returned by the most recent FillSlice call, then scans the filled
// region for newlines, emitting one Line per newline found (inclusive
// of the newline byte) and compacting any residual tail to the front
// of the buffer.
//
// When the buffer fills completely (Space() reaches 0 after Commit)
// without a newline having been seen, the entire buffer is emitted as
// a single synthetic line with an appended newline, and the buffer is
// reset to empty — matching the reference framer's overflow behavior.
func (f *Framer) Commit(n int) []*line.Line {
	f.n += n

	var out []*line.Line
	scanStart := 0
	for i := scanStart; i < f.n; i++ {
		if f.buf[i] != '\n' {
			continue
		}
		payload := make([]byte, i+1-scanStart)
		copy(payload, f.buf[scanStart:i+1])
		out = append(out, line.New(payload, 0))
		scanStart = i + 1
	}

	residual := f.n - scanStart
	if residual > 0 {
		copy(f.buf[0:residual], f.buf[scanStart:f.n])
	}
	f.n = residual

	if f.n == len(f.buf) {
		// Buffer full, no newline found: emit a synthetic line.
		payload := make([]byte, f.n+1)
		copy(payload, f.buf[:f.n])
		payload[f.n] = '\n'
		out = append(out, line.New(payload, 0))
		f.n = 0
	}

	return out
}

// Flush emits any residual buffered bytes as a final synthetic line
// (with an appended newline) and resets the buffer to empty. Used when
// a peer closes the connection with a partial line pending.
func (f *Framer) Flush() *line.Line {
	if f.n == 0 {
		return nil
	}
	payload := make([]byte, f.n+1)
	copy(payload, f.buf[:f.n])
	payload[f.n] = '\n'
	f.n = 0
	return line.New(payload, 0)
}
