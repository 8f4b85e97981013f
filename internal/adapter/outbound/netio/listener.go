package netio

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/mooproxy/mooproxy/internal/domain/auth"
	"github.com/mooproxy/mooproxy/internal/domain/line"
	"github.com/mooproxy/mooproxy/internal/domain/world"
)

const (
	authPromptMessage = "Welcome, please authenticate.\n"
	authFailMessage   = "Authentication failed, goodbye.\n"
	takeoverNotice    = "Connection is taken over."
)

// authAttempt is what a slot's per-byte collection goroutine reports
// once it has a verdict: either a complete candidate line, or a
// terminal error (overflow or the remote closing early).
type authAttempt struct {
	idx  int
	line string
	err  error
}

// Listener implements §4.2's accept/verify/takeover state machine for
// one world: a net.Listener, the world's fixed ring of auth.Slots, and
// the single promoted client connection.
type Listener struct {
	ln net.Listener

	Secret      *auth.Secret
	TokenBucket *auth.TokenBucket
	Now         func() time.Time

	mu     sync.Mutex
	conns  [auth.MaxSlots]net.Conn
	client net.Conn

	attempts chan authAttempt
}

// Listen opens network/address and returns a Listener ready to Serve,
// verifying candidates against secret and throttled by bucket.
func Listen(network, address string, secret *auth.Secret, bucket *auth.TokenBucket) (*Listener, error) {
	ln, err := net.Listen(network, address)
	if err != nil {
		return nil, err
	}
	return &Listener{
		ln:          ln,
		Secret:      secret,
		TokenBucket: bucket,
		attempts:    make(chan authAttempt, auth.MaxSlots),
	}, nil
}

// Addr returns the listener's bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Close shuts down the listener and every slot/client connection it
// currently holds.
func (l *Listener) Close() error {
	l.mu.Lock()
	for i, c := range l.conns {
		if c != nil {
			c.Close()
			l.conns[i] = nil
		}
	}
	if l.client != nil {
		l.client.Close()
		l.client = nil
	}
	l.mu.Unlock()
	return l.ln.Close()
}

func (l *Listener) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// Client returns the currently promoted client connection, or nil.
func (l *Listener) Client() net.Conn {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.client
}

// DropClient forgets the current client connection, for when the
// caller has already closed it itself (a read/write error, or the
// "quit" command).
func (l *Listener) DropClient() {
	l.mu.Lock()
	l.client = nil
	l.mu.Unlock()
}

// Serve accepts connections until the listener is closed, assigning
// each to a free slot in wld (or refusing it if every slot is
// occupied) and spawning a collection goroutine for it. It returns
// once Accept fails, typically because Close was called.
func (l *Listener) Serve(wld *world.World) {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			return
		}
		l.accept(wld, conn)
	}
}

func (l *Listener) accept(wld *world.World, conn net.Conn) {
	idx := -1
	for i := auth.MaxSlots - 1; i >= 0; i-- {
		if wld.Slots[i].State == auth.Idle {
			idx = i
			break
		}
	}
	if idx < 0 {
		conn.Close()
		return
	}

	l.mu.Lock()
	l.conns[idx] = conn
	l.mu.Unlock()

	io.WriteString(conn, authPromptMessage)

	wld.Slots[idx].Accept(conn.RemoteAddr().String())

	go l.collect(wld.Slots[idx], idx, conn)
}

// collect reads conn one byte at a time into slot, mirroring
// handle_auth_fd's per-byte loop, and reports the outcome on
// l.attempts for Pump to apply against world state.
func (l *Listener) collect(slot *auth.Slot, idx int, conn net.Conn) {
	var b [1]byte
	for {
		n, err := conn.Read(b[:])
		if n == 0 || err != nil {
			l.attempts <- authAttempt{idx: idx, err: io.ErrClosedPipe}
			return
		}
		switch slot.Feed(b[0]) {
		case auth.FeedContinue:
			continue
		case auth.FeedReady:
			l.attempts <- authAttempt{idx: idx, line: slot.Candidate()}
			return
		case auth.FeedOverflow:
			l.attempts <- authAttempt{idx: idx, err: io.ErrShortBuffer}
			return
		}
	}
}

// Pump applies at most one ready authentication attempt to wld,
// running the verifying/correct/failure transitions of §4.2, and
// reports whether one was processed. The engine loop calls this
// repeatedly (non-blocking) alongside its other readiness checks.
func (l *Listener) Pump(wld *world.World) bool {
	select {
	case att := <-l.attempts:
		l.resolve(wld, att)
		return true
	default:
		return false
	}
}

func (l *Listener) resolve(wld *world.World, att authAttempt) {
	slot := wld.Slots[att.idx]

	l.mu.Lock()
	conn := l.conns[att.idx]
	l.conns[att.idx] = nil
	l.mu.Unlock()

	if conn == nil {
		return
	}

	if att.err != nil {
		conn.Close()
		slot.Reset()
		return
	}

	if l.TokenBucket != nil && !l.TokenBucket.Allow() {
		io.WriteString(conn, authFailMessage)
		conn.Close()
		slot.Reset()
		return
	}

	if l.Secret == nil || !l.Secret.Verify(att.line) {
		io.WriteString(conn, authFailMessage)
		conn.Close()
		wld.ClientLoginFailures++
		wld.ClientLastFailAddr = slot.Remote
		wld.ClientLastFailTime = l.now()
		slot.Reset()
		return
	}

	remote := slot.Remote
	slot.State = auth.Authenticated
	slot.Reset()

	l.mu.Lock()
	oldConn := l.client
	l.client = conn
	l.mu.Unlock()

	if oldConn != nil {
		wld.MessageToClient(takeoverNotice)
		flushQueueTo(oldConn, wld.ClientTX)
		oldConn.Close()
	}

	wld.OnClientAuthenticated(remote, l.now())

	// The engine's writer goroutine only starts once its next tick
	// notices the promoted connection via Client(); flush the greeting
	// synchronously here so a client always sees it immediately instead
	// of waiting on that first tick.
	flushQueueTo(conn, wld.ClientTX)
}

// flushQueueTo drains q, writing every line straight to conn, best
// effort: this runs once as a connection is being torn down, so a
// write error here is not worth reporting anywhere.
func flushQueueTo(conn net.Conn, q *line.Queue) {
	for {
		ln := q.PopFront()
		if ln == nil {
			return
		}
		conn.Write(ln.Bytes)
	}
}
