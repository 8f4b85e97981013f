package engine

import (
	"net"

	"github.com/mooproxy/mooproxy/internal/adapter/outbound/netio"
	"github.com/mooproxy/mooproxy/internal/domain/line"
)

// readEvent is what a reader goroutine reports: a batch of newly
// framed lines, or a terminal error (including io.EOF on a clean
// close) once the connection can produce no more.
type readEvent struct {
	lines []*line.Line
	err   error
}

// reader owns one side's Framer and runs a blocking Read loop on its
// own goroutine, reporting framed lines (and the eventual terminal
// error) on a buffered channel the engine drains each tick. This is
// the "small dedicated reader goroutine that does nothing but turn
// blocking I/O into channel messages" SPEC_FULL.md's component design
// clarification describes for §4.1's non-blocking read semantics.
type reader struct {
	events chan readEvent
}

func startReader(conn net.Conn, framer *netio.Framer) *reader {
	r := &reader{events: make(chan readEvent, 64)}
	go func() {
		for {
			n, err := conn.Read(framer.FillSlice())
			if n > 0 {
				if lines := framer.Commit(n); len(lines) > 0 {
					r.events <- readEvent{lines: lines}
				}
			}
			if err != nil {
				if ln := framer.Flush(); ln != nil {
					r.events <- readEvent{lines: []*line.Line{ln}}
				}
				r.events <- readEvent{err: err}
				return
			}
		}
	}()
	return r
}

// writer owns one side's outbound socket and a wake channel; each time
// it is poked it drains q to the socket, blocking on Write exactly as
// long as the kernel send buffer is full. This realizes §4.12's
// flush-with-backpressure: the World's queue keeps absorbing appended
// lines while the writer goroutine is stalled on a slow peer, and
// drains in one burst once the peer catches up.
type writer struct {
	wake chan struct{}
	done chan struct{}
	errs chan error
}

func startWriter(conn net.Conn, q *line.Queue) *writer {
	w := &writer{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		errs: make(chan error, 1),
	}
	go func() {
		defer close(w.done)
		for range w.wake {
			for {
				ln := q.PopFront()
				if ln == nil {
					break
				}
				if _, err := conn.Write(ln.Bytes); err != nil {
					select {
					case w.errs <- err:
					default:
					}
					return
				}
			}
		}
	}()
	return w
}

// Poke wakes the writer goroutine to drain whatever has accumulated in
// its queue since the last wake. It never blocks: a pending wake
// already covers anything appended before it is processed.
func (w *writer) Poke() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Stop closes the wake channel, letting the writer goroutine exit once
// it has drained any pending wake.
func (w *writer) Stop() {
	close(w.wake)
	<-w.done
}
