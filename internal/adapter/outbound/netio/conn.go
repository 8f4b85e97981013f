package netio

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/mooproxy/mooproxy/internal/domain/world"
)

// DialFunc dials network/address, returning an established connection.
// The zero value of Connector uses (&net.Dialer{}).DialContext.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// ConnectResult is the single message a connect attempt produces.
type ConnectResult struct {
	Conn net.Conn
	Err  error
}

// Connector dials a world's resolved address list in order, trying
// each address until one succeeds or the list is exhausted, the way
// §4.4 describes: a non-blocking connect to the first address,
// advancing to the next on failure. Go's net.Dialer already performs
// the connect without blocking the caller's goroutine, so there is no
// separate SO_ERROR-on-writable step to model; the per-address retry
// loop runs inside the connect goroutine instead.
type Connector struct {
	Dial DialFunc
	Now  func() time.Time

	mu       sync.Mutex
	inFlight map[*world.World]connectInflight
}

func (c *Connector) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

type connectInflight struct {
	cancel context.CancelFunc
	done   chan struct{}
	result <-chan ConnectResult
}

// NewConnector returns a Connector ready to use, dialing with the
// standard library's default dialer.
func NewConnector() *Connector {
	return &Connector{inFlight: make(map[*world.World]connectInflight)}
}

// Start begins connecting to wld using wld.ServerAddresses (as left by
// a completed resolve), starting at wld.ServerAddrIndex. It is a no-op
// if wld is not disconnected or holds no addresses to try.
func (c *Connector) Start(wld *world.World) {
	if wld.ServerStatus != world.ServerDisconnected || len(wld.ServerAddresses) == 0 {
		return
	}

	c.mu.Lock()
	if _, busy := c.inFlight[wld]; busy {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	wld.Flags &^= world.ServerConnectPending
	wld.ServerStatus = world.ServerConnecting

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	ch := make(chan ConnectResult, 1)

	addrs := append([]string(nil), wld.ServerAddresses[wld.ServerAddrIndex:]...)
	portStr := strconv.Itoa(wld.ServerPort)

	dial := c.Dial
	if dial == nil {
		dial = (&net.Dialer{}).DialContext
	}

	go func() {
		defer close(done)
		var lastErr error
		for _, addr := range addrs {
			conn, err := dial(ctx, "tcp", net.JoinHostPort(addr, portStr))
			if err == nil {
				select {
				case ch <- ConnectResult{Conn: conn}:
				case <-ctx.Done():
					conn.Close()
				}
				return
			}
			lastErr = err
			if ctx.Err() != nil {
				return
			}
		}
		select {
		case ch <- ConnectResult{Err: lastErr}:
		case <-ctx.Done():
		}
	}()

	c.mu.Lock()
	c.inFlight[wld] = connectInflight{cancel: cancel, done: done, result: ch}
	c.mu.Unlock()
}

// Cancel aborts wld's in-flight connect attempt, if any.
func (c *Connector) Cancel(wld *world.World) {
	c.mu.Lock()
	inf, ok := c.inFlight[wld]
	if ok {
		delete(c.inFlight, wld)
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	inf.cancel()
	<-inf.done
	if wld.ServerStatus == world.ServerConnecting {
		wld.ServerStatus = world.ServerDisconnected
	}
}

// Ready is a non-blocking check for wld's in-flight connect attempt.
// On success it returns the established net.Conn and true, leaving
// wld.ServerStatus as ServerConnected; the caller (the engine) still
// owns clearing the receive framer, resetting MCP negotiation state,
// reopening the per-session log and writing the connect checkpoint, as
// none of those are Connector's concern. On exhaustion of every
// address it sets ServerStatus to ServerDisconnected, clears
// ServerAddresses, resets ServerAddrIndex to 0, messages the client,
// and returns a nil Conn with done=true; the caller decides whether to
// schedule a reconnect or give up, per ReconnectEnabled.
func (c *Connector) Ready(wld *world.World) (conn net.Conn, done bool) {
	c.mu.Lock()
	inf, ok := c.inFlight[wld]
	c.mu.Unlock()
	if !ok {
		return nil, false
	}

	select {
	case res := <-inf.result:
		c.mu.Lock()
		delete(c.inFlight, wld)
		c.mu.Unlock()
		<-inf.done

		if res.Err != nil {
			wld.ServerStatus = world.ServerDisconnected
			wld.ServerAddresses = nil
			wld.ServerAddrIndex = 0
			wld.MessageToClient("Could not connect: " + res.Err.Error())
			return nil, true
		}

		wld.ServerStatus = world.ServerConnected
		wld.ServerAddresses = nil
		wld.ServerAddrIndex = 0
		wld.ConnectedSince = c.now()
		return res.Conn, true

	default:
		return nil, false
	}
}
