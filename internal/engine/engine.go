// Package engine ties every adapter together into the per-world
// cooperative loop spec.md §5 describes: one goroutine owns a World
// and is the sole mutator of its state, polling readiness from the
// resolver, connector, listener and the active connections' reader
// goroutines once per tick instead of blocking in select/poll
// directly, per SPEC_FULL.md's Go-idiomatic realization of that
// design.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/mooproxy/mooproxy/internal/adapter/outbound/metrics"
	"github.com/mooproxy/mooproxy/internal/adapter/outbound/netio"
	"github.com/mooproxy/mooproxy/internal/adapter/outbound/resolver"
	"github.com/mooproxy/mooproxy/internal/ctxkey"
	"github.com/mooproxy/mooproxy/internal/domain/world"
	"github.com/mooproxy/mooproxy/internal/panichandler"
	"github.com/mooproxy/mooproxy/internal/telemetry"
	"go.opentelemetry.io/otel/trace"
)

// TickInterval is how often the engine polls every readiness source.
// The reference blocks in select/poll with a timeout derived from the
// nearest scheduled event; polling at a fixed short interval is the Go
// idiom SPEC_FULL.md sanctions in its place.
const TickInterval = 100 * time.Millisecond

// Engine drives one World's cooperative loop. The zero value is not
// usable; build one with New.
type Engine struct {
	World *world.World

	Resolver  *resolver.Service
	Connector *netio.Connector
	Listener  *netio.Listener

	Metrics    *metrics.Metrics
	Telemetry  *telemetry.Providers
	Logger     *slog.Logger
	PanicGuard *panichandler.Handler

	Now func() time.Time

	serverConn   net.Conn
	serverFramer *netio.Framer
	serverReader *reader
	serverWriter *writer

	clientConn   net.Conn
	clientFramer *netio.Framer
	clientReader *reader
	clientWriter *writer
	seenClient   net.Conn

	prevDroppedBuffered int64
	prevDroppedInactive int64
}

// New returns an Engine ready to Run, wiring a world-scoped logger onto
// the context the way the teacher enriches per-request loggers via
// ctxkey.LoggerKey.
func New(wld *world.World, res *resolver.Service, conn *netio.Connector, ln *netio.Listener, log *slog.Logger) *Engine {
	return &Engine{
		World:     wld,
		Resolver:  res,
		Connector: conn,
		Listener:  ln,
		Logger:    log.With("world", wld.Name),
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) ctx() context.Context {
	ctx := context.Background()
	if e.Logger != nil {
		ctx = context.WithValue(ctx, ctxkey.LoggerKey{}, e.Logger)
	}
	return ctx
}

// Run blocks, ticking the engine until ctx is canceled or the world's
// Shutdown flag is set by a command handler.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.teardown()
			return
		case <-ticker.C:
			e.tick()
			if e.World.Flags.Has(world.Shutdown) {
				e.teardown()
				return
			}
		}
	}
}

// tick runs exactly one pass of every readiness check, mirroring one
// iteration of the reference's select/poll loop body.
func (e *Engine) tick() {
	if e.PanicGuard != nil {
		defer func() {
			if diagnostic, panicked := e.PanicGuard.Recover(); panicked && e.Logger != nil {
				e.Logger.Error("recovered panic in engine tick", "diagnostic", diagnostic)
			}
		}()
	}

	now := e.now()

	if e.Listener != nil {
		for e.Listener.Pump(e.World) {
		}
		e.syncClient()
	}

	if e.Resolver != nil {
		e.Resolver.Ready(e.World)
	}

	if e.World.Flags.Has(world.ServerConnectPending) && e.Connector != nil {
		e.Connector.Start(e.World)
	}

	if e.Connector != nil {
		if conn, done := e.Connector.Ready(e.World); done && conn != nil {
			e.onServerConnected(conn, now)
		} else if done {
			e.onConnectFailed(now)
		}
	}

	e.drainServerReads()
	e.World.HandleServerQueue()
	// Buffered only ever holds lines for a client that is currently
	// connected (storeServerLine routes to Inactive otherwise), so
	// draining it every pass is always the right thing to do: it is
	// the buffered-queue -> client TX queue leg of the data flow.
	e.World.PassBufferedText(-1)

	e.drainClientReads()
	e.World.HandleClientQueue()

	e.pokeWriters()

	e.handleCommandFlags(now)

	if netio.DueForReconnect(e.World, now) {
		e.attemptReconnect()
	}
	if netio.StableLongEnough(e.World, now) {
		netio.DecreaseReconnectDelay(e.World)
	}

	e.World.TrimDynamicQueues()

	if msg := e.World.Tick(now); msg != "" {
		e.World.MessageToClient(msg)
	}

	if e.Metrics != nil {
		e.Metrics.Observe(metrics.WorldSnapshot{
			ClientConnected: e.World.ClientStatus == world.ClientConnected,
			BufferedBytes:   e.World.Buffered.Length(),
			InactiveBytes:   e.World.Inactive.Length(),
			HistoryBytes:    e.World.History.Length(),
			DroppedBuffered: e.World.DroppedBuffered,
			DroppedInactive: e.World.DroppedInactive,
		}, &e.prevDroppedBuffered, &e.prevDroppedInactive)
	}

	e.pokeWriters()
}

// syncClient notices when the Listener has promoted a new connection
// (or none at all, after a takeover closed the prior one) and swaps
// the writer goroutine accordingly. The Listener itself already wrote
// the greeting synchronously at promotion time; from here on the
// ordinary writer goroutine owns the socket.
func (e *Engine) syncClient() {
	cur := e.Listener.Client()
	if cur == e.seenClient {
		return
	}
	if e.clientWriter != nil {
		e.clientWriter.Stop()
		e.clientWriter = nil
	}
	if e.clientConn != nil {
		// Closing twice is harmless: a takeover already closed the
		// superseded connection itself, this only matters for the
		// quit/shutdown path where nobody else does.
		e.clientConn.Close()
	}
	e.clientReader = nil
	e.clientFramer = nil

	e.seenClient = cur
	e.clientConn = cur
	if cur != nil {
		e.clientWriter = startWriter(cur, e.World.ClientTX)
		e.clientFramer = netio.NewFramer()
		e.clientReader = startReader(cur, e.clientFramer)
	} else if e.World.ClientStatus == world.ClientConnected {
		e.World.ClientStatus = world.ClientDisconnected
	}
}

func (e *Engine) onServerConnected(conn net.Conn, now time.Time) {
	if span := e.spanConnect(conn); span != nil {
		span.End()
	}

	e.serverConn = conn
	e.serverFramer = netio.NewFramer()
	e.serverReader = startReader(conn, e.serverFramer)
	e.serverWriter = startWriter(conn, e.World.ServerTX)

	e.World.MCP.ResetLines()
	if e.World.Logger != nil {
		e.World.Logger.Reopen(now)
	}

	e.World.MessageToClientBuffered(fmt.Sprintf("Connected to world %s", e.World.Name))
}

func (e *Engine) onConnectFailed(now time.Time) {
	if e.World.ReconnectEnabled {
		netio.ScheduleReconnect(e.World, now)
	}
}

func (e *Engine) spanConnect(conn net.Conn) trace.Span {
	if e.Telemetry == nil {
		return nil
	}
	addr := ""
	if conn != nil && conn.RemoteAddr() != nil {
		addr = conn.RemoteAddr().String()
	}
	_, span := e.Telemetry.StartConnect(e.ctx(), addr)
	return span
}

func (e *Engine) drainServerReads() {
	if e.serverReader == nil {
		return
	}
	for {
		select {
		case ev := <-e.serverReader.events:
			for _, l := range ev.lines {
				e.World.ServerRX.Append(l)
			}
			if ev.err != nil {
				e.onServerClosed(ev.err)
				return
			}
		default:
			return
		}
	}
}

func (e *Engine) onServerClosed(err error) {
	if e.serverWriter != nil {
		e.serverWriter.Stop()
		e.serverWriter = nil
	}
	e.serverConn.Close()
	e.serverConn = nil
	e.serverReader = nil
	e.serverFramer = nil

	e.World.ServerStatus = world.ServerDisconnected
	e.World.MessageToClientBuffered(fmt.Sprintf("Connection to server lost (%s).", err))

	if e.World.ReconnectEnabled {
		netio.ScheduleReconnect(e.World, e.now())
	}
}

func (e *Engine) drainClientReads() {
	if e.clientReader == nil {
		return
	}
	for {
		select {
		case ev := <-e.clientReader.events:
			for _, l := range ev.lines {
				e.World.ClientRX.Append(l)
			}
			if ev.err != nil {
				e.onClientClosed()
				return
			}
		default:
			return
		}
	}
}

// onClientClosed reacts to the promoted client connection closing (or
// erroring) on its own, as opposed to being superseded by a takeover
// or dropped by the "quit" command: the Listener no longer considers
// this connection its client, so forget it here too and fall back to
// ClientDisconnected.
func (e *Engine) onClientClosed() {
	if e.clientWriter != nil {
		e.clientWriter.Stop()
		e.clientWriter = nil
	}
	if e.clientConn != nil {
		e.clientConn.Close()
	}
	if e.Listener != nil && e.Listener.Client() == e.clientConn {
		e.Listener.DropClient()
	}
	e.clientConn = nil
	e.clientReader = nil
	e.clientFramer = nil
	e.seenClient = nil
	e.World.ClientStatus = world.ClientDisconnected
}

func (e *Engine) pokeWriters() {
	if e.serverWriter != nil {
		e.serverWriter.Poke()
	}
	if e.clientWriter != nil {
		e.clientWriter.Poke()
	}
}

// handleCommandFlags acts on the flags command handlers raise: quit
// drops only the client link, disconnect/shutdown tear down the
// server link (and shutdown additionally stops Run on the next check
// in the caller).
func (e *Engine) handleCommandFlags(now time.Time) {
	if e.World.Flags.Has(world.ClientQuit) {
		e.World.Flags &^= world.ClientQuit
		if e.Listener != nil {
			e.Listener.DropClient()
		}
		e.syncClient()
	}

	if e.World.Flags.Has(world.ServerQuit) {
		e.World.Flags &^= world.ServerQuit
		e.disconnectServer(now)
	}

	if e.World.Flags.Has(world.Shutdown) {
		e.disconnectServer(now)
		if e.Listener != nil {
			e.Listener.DropClient()
			e.syncClient()
		}
	}
}

func (e *Engine) disconnectServer(now time.Time) {
	if e.Resolver != nil {
		e.Resolver.Cancel(e.World)
	}
	if e.Connector != nil {
		e.Connector.Cancel(e.World)
	}
	if e.serverConn != nil {
		if e.serverWriter != nil {
			e.serverWriter.Stop()
			e.serverWriter = nil
		}
		e.serverConn.Close()
		e.serverConn = nil
		e.serverReader = nil
		e.serverFramer = nil
	}
	e.World.ReconnectEnabled = false
	e.World.ServerStatus = world.ServerDisconnected
}

func (e *Engine) attemptReconnect() {
	if e.Metrics != nil {
		e.Metrics.ReconnectAttempt.Add(1)
	}
	e.World.ServerStatus = world.ServerDisconnected
	if e.Resolver != nil {
		e.Resolver.StartConnect(e.World, e.World.ServerHost, e.World.ServerPort)
	}
}

func (e *Engine) teardown() {
	if e.serverWriter != nil {
		e.serverWriter.Stop()
	}
	if e.clientWriter != nil {
		e.clientWriter.Stop()
	}
	if e.serverConn != nil {
		e.serverConn.Close()
	}
	if e.Listener != nil {
		e.Listener.Close()
	}
}
