// Package world implements the World aggregate: the state container
// that ties authentication, server/client link state, the line
// queues, the timer and the logger together for a single proxied
// world, plus the operations that move lines between those queues.
package world

import (
	"fmt"
	"strings"
	"time"

	"github.com/mooproxy/mooproxy/internal/adapter/outbound/logger"
	"github.com/mooproxy/mooproxy/internal/domain/auth"
	"github.com/mooproxy/mooproxy/internal/domain/line"
	"github.com/mooproxy/mooproxy/internal/domain/mcp"
	"github.com/mooproxy/mooproxy/internal/domain/timer"
)

// Flag is the world-level status bitfield.
type Flag uint32

const (
	Activated Flag = 1 << iota
	NotConnected
	ClientQuit
	ServerQuit
	ReconnectPending
	ResolvePending
	ServerConnectPending
	LogLinkUpdate
	RebindPort
	Shutdown
	// PassMode is cleared on every fresh client connection, and the
	// greeting reports pass mode as off. Nothing else reads it: the
	// engine passes buffered lines to a connected client on every tick
	// whether or not it is set.
	PassMode
)

// Has reports whether all bits of f are set.
func (flags Flag) Has(f Flag) bool { return flags&f == f }

// ServerStatus is the server link's position in its connection
// lifecycle.
type ServerStatus int

const (
	ServerDisconnected ServerStatus = iota
	ServerResolving
	ServerConnecting
	ServerConnected
	ServerReconnectWait
)

// ClientStatus is the client link's position in its connection
// lifecycle.
type ClientStatus int

const (
	ClientDisconnected ClientStatus = iota
	ClientConnected
)

// MessageTerminator is appended to every proxy-originated informational
// line: an ANSI reset followed by a newline.
const MessageTerminator = "\x1B[0m\n"

// Options holds the per-world configuration values a running World
// consults. Parsing and validation of these from an on-disk file is
// the concern of internal/config; World only reads the resulting
// values.
type Options struct {
	ListenPort       int
	AuthString       string
	Host             string
	Port             int
	CommandString    string
	InfoString       string
	LoggingEnabled   bool
	ContextOnConnect int
	MaxBufferedSize  int64
	MaxHistorySize   int64
	StrictCommands   bool
}

// DefaultOptions returns the reference's documented defaults for any
// option not set explicitly.
func DefaultOptions() Options {
	return Options{
		CommandString:    "/",
		InfoString:       "% ",
		ContextOnConnect: 50,
		MaxBufferedSize:  1 << 20,
		MaxHistorySize:   1 << 20,
		StrictCommands:   true,
	}
}

// CommandDispatcher executes a command (the text after the command
// prefix has been stripped) against a World, reporting whether cmd was
// recognized. It is an interface rather than a direct import of the
// command package to keep World free of a dependency on command
// dispatch internals; the engine wires a concrete implementation at
// startup.
type CommandDispatcher interface {
	Dispatch(wld *World, cmd, args string) (recognized bool)
}

// World is the aggregate state for a single proxied world.
type World struct {
	Name       string
	ConfigFile string

	Flags Flag

	Options Options

	RequestedListenPort int
	ListenPort          int

	Secret      *auth.Secret
	TokenBucket *auth.TokenBucket
	Slots       [auth.MaxSlots]*auth.Slot

	ServerStatus     ServerStatus
	ServerHost       string
	ServerPort       int
	ServerAddresses  []string
	ServerAddrIndex  int
	ReconnectEnabled bool
	ReconnectDelay   time.Duration
	ReconnectAt      time.Time
	ConnectedSince   time.Time

	ClientStatus         ClientStatus
	ClientAddress        string
	ClientPrevAddress    string
	ClientConnectedSince time.Time
	ClientLastConnected  time.Time
	ClientLoginFailures  int64
	ClientLastFailAddr   string
	ClientLastFailTime   time.Time
	ClientLastNotConnMsg time.Time

	ClientRX *line.Queue
	ClientTX *line.Queue
	ServerRX *line.Queue
	ServerTX *line.Queue

	Buffered        *line.Queue
	Inactive        *line.Queue
	History         *line.Queue
	DroppedInactive int64
	DroppedBuffered int64

	Timer *timer.Timer

	Logger *logger.Logger

	MCP *mcp.Handshake

	CommandDispatcher CommandDispatcher
}

// New returns a freshly initialized World with empty queues and
// options set to their defaults. Callers populate Secret, TokenBucket,
// Logger, Timer and Options as startup proceeds.
func New(name, configFile string) *World {
	w := &World{
		Name:         name,
		ConfigFile:   configFile,
		Options:      DefaultOptions(),
		ServerStatus: ServerDisconnected,
		ClientStatus: ClientDisconnected,
		ClientRX:     line.NewQueue(),
		ClientTX:     line.NewQueue(),
		ServerRX:     line.NewQueue(),
		ServerTX:     line.NewQueue(),
		Buffered:     line.NewQueue(),
		Inactive:     line.NewQueue(),
		History:      line.NewQueue(),
		MCP:          &mcp.Handshake{},
	}
	for i := range w.Slots {
		w.Slots[i] = auth.NewSlot()
	}
	return w
}

// MessageToClient queues an immediate, unlogged, unstored
// informational line for the client: it is not retained across a
// reconnect.
func (w *World) MessageToClient(str string) {
	b := []byte(w.Options.InfoString + str + MessageTerminator)
	w.ClientTX.Append(line.New(b, line.Message|line.DontLog|line.NoHistory))
}

// MessageToClientBuffered is like MessageToClient, but the line is
// routed through the same buffered/logged pipeline as ordinary server
// output, so it survives a client disconnect and reconnect (a
// "checkpoint line").
func (w *World) MessageToClientBuffered(str string) {
	b := []byte(w.Options.InfoString + str + MessageTerminator)
	w.storeServerLine(line.New(b, line.Message|line.Checkpoint))
}

// OnClientAuthenticated promotes a freshly authenticated connection to
// the active client link, mirroring verify_authentication's
// post-transfer sequence: it records the client's address and
// connection times, merges any lines that accumulated while no client
// was connected into History, clears pass mode, and greets the client
// with a confirmation and a buffered-count/pass-mode line. The caller
// owns the socket swap and any takeover notice to a previous client;
// this only updates domain state.
func (w *World) OnClientAuthenticated(remote string, now time.Time) {
	w.ClientPrevAddress = w.ClientAddress
	w.ClientAddress = remote
	w.ClientStatus = ClientConnected
	w.ClientConnectedSince = now
	w.ClientLastConnected = now
	w.Flags &^= PassMode

	w.InactiveToHistory()
	w.replayContext()

	w.MessageToClient("Authentication succesful.")
	w.MessageToClient(fmt.Sprintf("%d lines waiting. Pass is off.", w.Buffered.Count()))
}

// replayContext copies up to Options.ContextOnConnect of the newest
// history lines to ClientTX, ANSI-stripped and flagged Recalled, giving
// a freshly (re)connected client backlog context before the regular
// greeting. Mirrors world_recall_and_pass's documented contract of
// replicating history for context before passing buffered lines.
func (w *World) replayContext() {
	n := w.Options.ContextOnConnect
	if n > w.History.Count() {
		n = w.History.Count()
	}
	if n <= 0 {
		return
	}

	newest := make([]*line.Line, 0, n)
	w.History.EachReverse(func(l *line.Line) bool {
		newest = append(newest, l)
		return len(newest) < n
	})
	for i := len(newest) - 1; i >= 0; i-- {
		stripped := logger.StripANSI(newest[i].Bytes)
		recalled := line.New(append([]byte(nil), stripped...), line.Message|line.Recalled)
		recalled.Created = newest[i].Created
		w.ClientTX.Append(recalled)
	}
}

// HandleClientQueue drains ClientRX, routing each line to the command
// dispatcher, the MCP handshake, or the server TX queue, in that
// classification order.
func (w *World) HandleClientQueue() {
	for {
		l := w.ClientRX.PopFront()
		if l == nil {
			return
		}

		text := strings.TrimRight(string(l.Bytes), "\r\n")

		if w.Options.CommandString != "" && strings.HasPrefix(text, w.Options.CommandString) {
			if w.dispatchCommand(strings.TrimPrefix(text, w.Options.CommandString)) {
				continue
			}
			if w.Options.StrictCommands {
				continue
			}
			// strict_commands is off: an unrecognized command-prefixed
			// line is treated as regular traffic instead.
		}

		if mcp.IsMCP(l.Bytes) {
			w.handleMCPClient(l)
			continue
		}

		w.ServerTX.Append(l)
	}
}

// dispatchCommand splits text into a command word and its remaining
// arguments and hands it to the CommandDispatcher. It reports whether
// the command was recognized; when it was not and strict_commands is
// on, it queues the fixed "invalid command" reply itself.
func (w *World) dispatchCommand(text string) (recognized bool) {
	cmd, args, _ := strings.Cut(text, " ")
	args = strings.TrimLeft(args, " ")

	if w.CommandDispatcher != nil && w.CommandDispatcher.Dispatch(w, cmd, args) {
		return true
	}

	if w.Options.StrictCommands {
		w.MessageToClient("Invalid command: `" + cmd + "'.")
	}
	return false
}

// handleMCPClient inspects a client-originated MCP line for the
// handshake triggers, forwards it unaltered to the server, and queues
// any reply the handshake produces.
func (w *World) handleMCPClient(l *line.Line) {
	w.ServerTX.Append(l)

	msg, ok := mcp.Parse(l.Bytes)
	if !ok {
		return
	}

	clientMsg, serverLine := w.MCP.ObserveClientLine(msg)
	if clientMsg != "" {
		w.MessageToClient(clientMsg)
	}
	if serverLine != "" {
		w.ServerTX.Append(line.New([]byte(serverLine), 0))
	}
}

// HandleServerQueue drains ServerRX, forwarding MCP lines to the
// client unaltered and routing everything else through the
// buffered/logged/history pipeline.
func (w *World) HandleServerQueue() {
	for {
		l := w.ServerRX.PopFront()
		if l == nil {
			return
		}

		if mcp.IsMCP(l.Bytes) {
			w.ClientTX.Append(l)
			continue
		}

		w.storeServerLine(l)
	}
}

// storeServerLine logs and queues a server-originated (or
// proxy-synthesized checkpoint) line for eventual delivery to the
// client: into Buffered when a client is connected, or Inactive
// otherwise, so a later reconnect can promote the backlog into
// History in one pass.
func (w *World) storeServerLine(l *line.Line) {
	if w.Logger != nil && !l.Has(line.DontLog) {
		w.Logger.Write(l)
	}

	if w.ClientStatus == ClientConnected {
		w.Buffered.Append(l)
	} else {
		w.Inactive.Append(l)
	}
}

// InactiveToHistory appends every line accumulated in Inactive onto
// History, in order, marking them as definitely-seen. Call this when
// a client (re)connects, before replaying context and passing
// Buffered.
func (w *World) InactiveToHistory() {
	line.Merge(w.History, w.Inactive)
}

// PassBufferedText moves up to num lines (or all of them, if num < 0)
// from Buffered to ClientTX and History, preserving order.
func (w *World) PassBufferedText(num int) {
	for num != 0 {
		l := w.Buffered.PopFront()
		if l == nil {
			return
		}
		w.ClientTX.Append(l.Dup())
		w.History.Append(l)
		if num > 0 {
			num--
		}
	}
}

// TrimDynamicQueues pops the oldest lines from Buffered, Inactive and
// History until each is at or below its configured byte cap, counting
// drops. It is unconditional on every call so memory stays bounded
// across bursts; callers invoke it once per main-loop pass.
func (w *World) TrimDynamicQueues() {
	w.DroppedBuffered += int64(w.Buffered.TrimFront(w.Options.MaxBufferedSize))
	w.DroppedInactive += int64(w.Inactive.TrimFront(w.Options.MaxBufferedSize))
	w.History.TrimFront(w.Options.MaxHistorySize)
}

// Tick advances the per-second timer and flushes the logger,
// returning any debounced log-error message that should be forwarded
// to the client.
func (w *World) Tick(now time.Time) string {
	if w.Timer != nil {
		w.Timer.Tick(now)
	}
	if w.Logger != nil {
		return w.Logger.Flush()
	}
	return ""
}
