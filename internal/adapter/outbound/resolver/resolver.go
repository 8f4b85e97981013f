// Package resolver implements asynchronous host resolution: a
// goroutine-and-channel replacement for the fork/pipe resolver slave,
// adapted to back command.Connector. A resolve emits exactly one
// tagged Result on its channel and the channel is never written to
// again afterwards.
package resolver

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/mooproxy/mooproxy/internal/domain/world"
)

// Result is the single message a resolve produces: either a numeric
// address list (Err == nil) or a diagnostic (Err != nil). This is the
// channel-based equivalent of the RESOLVE_SUCCESS/RESOLVE_ERROR tag
// byte the slave process used to prefix its pipe message with.
type Result struct {
	Addresses []string
	Err       error
}

// LookupFunc resolves host to a list of numeric addresses, the way
// getaddrinfo followed by getnameinfo(..., NI_NUMERICHOST) did. The
// zero value of Resolver falls back to net.DefaultResolver.LookupHost,
// which already returns numeric address strings.
type LookupFunc func(ctx context.Context, host string) ([]string, error)

// Handle tracks one in-flight resolve.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Resolver runs resolves in their own goroutine instead of a forked
// slave process. It allows at most one resolve in flight at a time,
// mirroring world_start_server_resolve's "if we're already resolving,
// ignore the request" guard.
type Resolver struct {
	Lookup LookupFunc

	mu   sync.Mutex
	live *Handle
}

// Start begins resolving host and returns a buffered channel that
// receives exactly one Result, plus a Handle for cancellation. If a
// resolve is already running, Start does nothing and returns a nil
// channel and handle.
func (r *Resolver) Start(host string) (<-chan Result, *Handle) {
	r.mu.Lock()
	if r.live != nil {
		r.mu.Unlock()
		return nil, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	h := &Handle{cancel: cancel, done: done}
	r.live = h
	r.mu.Unlock()

	lookup := r.Lookup
	if lookup == nil {
		lookup = net.DefaultResolver.LookupHost
	}

	ch := make(chan Result, 1)
	go func() {
		defer close(done)
		addrs, err := lookup(ctx, host)
		res := Result{Addresses: addrs}
		if err != nil {
			res.Err = fmt.Errorf("Resolving failed: %s.", err)
		}
		select {
		case ch <- res:
		case <-ctx.Done():
		}
	}()

	return ch, h
}

// Cancel aborts an in-flight resolve and waits for its goroutine to
// exit before returning, mirroring world_cancel_server_resolve's
// kill-and-waitpid. Calling Cancel with a Handle whose Result has
// already been delivered is a harmless no-op.
func (r *Resolver) Cancel(h *Handle) {
	if h == nil {
		return
	}
	h.cancel()
	<-h.done
	r.release(h)
}

// Done releases the one-resolve-at-a-time slot after a Result has
// been read off the channel, mirroring world_handle_resolver_fd's
// unconditional reap of the slave once the pipe read completes.
func (r *Resolver) Done(h *Handle) {
	if h == nil {
		return
	}
	<-h.done
	r.release(h)
}

func (r *Resolver) release(h *Handle) {
	r.mu.Lock()
	if r.live == h {
		r.live = nil
	}
	r.mu.Unlock()
}

// Service adapts a Resolver to command.Connector, driving a world's
// ServerStatus and ServerAddresses the way world_start_server_resolve
// and world_handle_resolver_fd drove server_status and
// server_addresslist. One Service can serve many worlds and records
// each world's in-flight resolve separately, but its single Resolver
// runs only one resolve at a time across all of them: a StartConnect
// for another world while one is in flight is refused with
// "Already resolving.".
type Service struct {
	resolver *Resolver

	mu       sync.Mutex
	inFlight map[*world.World]inflight
}

type inflight struct {
	handle *Handle
	result <-chan Result
}

// NewService returns a Service ready to use, with a default Resolver.
func NewService() *Service {
	return &Service{
		resolver: &Resolver{},
		inFlight: make(map[*world.World]inflight),
	}
}

// StartConnect implements command.Connector. It ignores the request if
// wld is not disconnected, or if a resolve for wld is already running.
func (s *Service) StartConnect(wld *world.World, host string, port int) {
	if wld.ServerStatus != world.ServerDisconnected {
		return
	}

	ch, h := s.resolver.Start(host)
	if h == nil {
		wld.MessageToClient("Already resolving.")
		return
	}

	wld.ServerStatus = world.ServerResolving
	wld.ServerHost = host
	wld.ServerPort = port
	wld.ServerAddresses = nil
	wld.ServerAddrIndex = 0

	s.mu.Lock()
	s.inFlight[wld] = inflight{handle: h, result: ch}
	s.mu.Unlock()
}

// Cancel aborts wld's in-flight resolve, if any, and returns wld to
// ServerDisconnected. It mirrors world_cancel_server_resolve.
func (s *Service) Cancel(wld *world.World) {
	s.mu.Lock()
	inf, ok := s.inFlight[wld]
	if ok {
		delete(s.inFlight, wld)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	s.resolver.Cancel(inf.handle)
	wld.ServerStatus = world.ServerDisconnected
}

// Ready is a non-blocking check for wld's in-flight resolve. If a
// Result is available it is applied to wld (on success, the address
// list is stored and ServerConnectPending is raised for the connector
// to pick up; on error, the client is told and the world reverts to
// disconnected) and true is returned. It mirrors
// world_handle_resolver_fd's read-parse-reap sequence, without the
// blocking pipe read: the Result is already sitting in the channel by
// the time an engine loop calls Ready.
func (s *Service) Ready(wld *world.World) bool {
	s.mu.Lock()
	inf, ok := s.inFlight[wld]
	s.mu.Unlock()
	if !ok {
		return false
	}

	select {
	case res := <-inf.result:
		s.resolver.Done(inf.handle)
		s.mu.Lock()
		delete(s.inFlight, wld)
		s.mu.Unlock()

		if res.Err != nil {
			wld.MessageToClient(res.Err.Error())
			wld.ServerStatus = world.ServerDisconnected
			return true
		}

		wld.ServerAddresses = res.Addresses
		wld.ServerAddrIndex = 0
		wld.ServerStatus = world.ServerDisconnected
		wld.Flags |= world.ServerConnectPending
		return true
	default:
		return false
	}
}
