package command

import (
	"strings"
	"testing"
	"time"

	"github.com/mooproxy/mooproxy/internal/domain/line"
	"github.com/mooproxy/mooproxy/internal/domain/world"
)

func newTestWorld() *world.World {
	return world.New("test", "/tmp/test.conf")
}

func popText(t *testing.T, w *world.World) string {
	t.Helper()
	l := w.ClientTX.PopFront()
	if l == nil {
		t.Fatal("expected a queued client message")
	}
	return string(l.Bytes)
}

func TestDispatchUnknownCommandReportsUnrecognized(t *testing.T) {
	d := &Dispatcher{}
	w := newTestWorld()
	if d.Dispatch(w, "bogus", "") {
		t.Fatal("expected bogus command to be unrecognized")
	}
}

func TestHelpRefusesArguments(t *testing.T) {
	d := &Dispatcher{}
	w := newTestWorld()
	d.Dispatch(w, "help", "extra")
	msg := popText(t, w)
	if !strings.Contains(msg, "does not take arguments") {
		t.Fatalf("message = %q, want refusal", msg)
	}
}

func TestHelpEmitsBlock(t *testing.T) {
	d := &Dispatcher{}
	w := newTestWorld()
	d.Dispatch(w, "help", "")
	if w.ClientTX.Count() != len(helpText) {
		t.Fatalf("client tx count = %d, want %d", w.ClientTX.Count(), len(helpText))
	}
}

func TestQuitSetsFlagAndMessages(t *testing.T) {
	d := &Dispatcher{}
	w := newTestWorld()
	d.Dispatch(w, "quit", "")
	if !w.Flags.Has(world.ClientQuit) {
		t.Fatal("expected ClientQuit flag set")
	}
	if !strings.Contains(popText(t, w), "Closing connection") {
		t.Fatal("expected closing-connection message")
	}
}

func TestShutdownUsesBufferedMessage(t *testing.T) {
	d := &Dispatcher{}
	w := newTestWorld()
	w.ClientStatus = world.ClientConnected
	d.Dispatch(w, "shutdown", "")
	if !w.Flags.Has(world.Shutdown) {
		t.Fatal("expected Shutdown flag set")
	}
	if w.Buffered.Count() != 1 {
		t.Fatal("shutdown message should go through the buffered pipeline")
	}
}

func TestWorldCommandPrintsName(t *testing.T) {
	d := &Dispatcher{}
	w := newTestWorld()
	w.Name = "mymoo"
	d.Dispatch(w, "world", "")
	if msg := popText(t, w); msg != "% The world is `mymoo'.\x1B[0m\n" {
		t.Fatalf("message = %q", msg)
	}
}

func TestVersionCommand(t *testing.T) {
	d := &Dispatcher{}
	w := newTestWorld()
	d.Dispatch(w, "version", "")
	if msg := popText(t, w); !strings.Contains(msg, Version) {
		t.Fatalf("message = %q, want it to contain %q", msg, Version)
	}
}

func TestUptimeCommand(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(90 * time.Minute)
	d := &Dispatcher{StartedAt: start, Now: func() time.Time { return now }}
	w := newTestWorld()
	d.Dispatch(w, "uptime", "")
	msg := popText(t, w)
	if !strings.Contains(msg, "01:30:00") {
		t.Fatalf("message = %q, want it to contain 01:30:00", msg)
	}
}

type fakeConnector struct {
	host string
	port int
}

func (c *fakeConnector) StartConnect(wld *world.World, host string, port int) {
	c.host, c.port = host, port
	wld.ServerStatus = world.ServerResolving
}

func TestConnectUsesArgsOverrideAndDoesNotMutateOptions(t *testing.T) {
	fc := &fakeConnector{}
	d := &Dispatcher{Connector: fc}
	w := newTestWorld()
	w.Options.Host = "saved.example.org"
	w.Options.Port = 1234

	d.Dispatch(w, "connect", "override.example.org 4321")

	if fc.host != "override.example.org" || fc.port != 4321 {
		t.Fatalf("connector got %s:%d, want override.example.org:4321", fc.host, fc.port)
	}
	if w.Options.Host != "saved.example.org" || w.Options.Port != 1234 {
		t.Fatal("temporary connect overrides must not mutate saved options")
	}
}

func TestConnectWhenAlreadyConnectedRefuses(t *testing.T) {
	fc := &fakeConnector{}
	d := &Dispatcher{Connector: fc}
	w := newTestWorld()
	w.ServerStatus = world.ServerConnected

	d.Dispatch(w, "connect", "")

	if fc.host != "" {
		t.Fatal("connector should not be invoked when already connected")
	}
	if !strings.Contains(popText(t, w), "Already connected") {
		t.Fatal("expected already-connected message")
	}
}

func TestDisconnectSetsServerQuitRegardless(t *testing.T) {
	d := &Dispatcher{}
	w := newTestWorld()
	d.Dispatch(w, "disconnect", "")
	if !w.Flags.Has(world.ServerQuit) {
		t.Fatal("expected ServerQuit flag even when not connected")
	}
	if !strings.Contains(popText(t, w), "Not connected") {
		t.Fatal("expected not-connected message")
	}
}

func TestGetoptUnknownOption(t *testing.T) {
	d := &Dispatcher{}
	w := newTestWorld()
	d.Dispatch(w, "getopt", "bogus")
	if !strings.Contains(popText(t, w), "No such option") {
		t.Fatal("expected no-such-option message")
	}
}

func TestGetoptAuthstringDenied(t *testing.T) {
	d := &Dispatcher{}
	w := newTestWorld()
	w.Options.AuthString = "secret"
	d.Dispatch(w, "getopt", "authstring")
	if !strings.Contains(popText(t, w), "cannot be read") {
		t.Fatal("expected permission-denied message")
	}
}

func TestSetoptValidValue(t *testing.T) {
	d := &Dispatcher{}
	w := newTestWorld()
	d.Dispatch(w, "setopt", "commandstring >")
	msg := popText(t, w)
	if !strings.Contains(msg, "is now `>'") {
		t.Fatalf("message = %q", msg)
	}
	if w.Options.CommandString != ">" {
		t.Fatalf("commandstring = %q", w.Options.CommandString)
	}
}

func TestSetoptStripsEnclosingQuotes(t *testing.T) {
	d := &Dispatcher{}
	w := newTestWorld()
	d.Dispatch(w, "setopt", `infostring "% "`)
	if w.Options.InfoString != "% " {
		t.Fatalf("infostring = %q", w.Options.InfoString)
	}
}

func TestSetoptInvalidLeavesValueUnchanged(t *testing.T) {
	d := &Dispatcher{}
	w := newTestWorld()
	before := w.Options.Port
	d.Dispatch(w, "setopt", "port notanumber")
	if w.Options.Port != before {
		t.Fatal("invalid setopt must leave the option unchanged")
	}
}

func TestSetoptMissingValue(t *testing.T) {
	d := &Dispatcher{}
	w := newTestWorld()
	d.Dispatch(w, "setopt", "port")
	if !strings.Contains(popText(t, w), "Use: setopt") {
		t.Fatal("expected usage message")
	}
}

func TestListoptsWrapsAndTerminates(t *testing.T) {
	d := &Dispatcher{}
	w := newTestWorld()
	d.Dispatch(w, "listopts", "")

	var all []string
	for w.ClientTX.Count() > 0 {
		all = append(all, popText(t, w))
	}
	if len(all) < 2 {
		t.Fatalf("expected at least a header and one options line, got %d", len(all))
	}
	last := all[len(all)-1]
	if !strings.HasSuffix(strings.TrimSuffix(last, world.MessageTerminator), ".") {
		t.Fatalf("last line = %q, want trailing period", last)
	}
}

func TestRecallWithNoArgsReportsHistorySize(t *testing.T) {
	d := &Dispatcher{}
	w := newTestWorld()
	w.History.Append(line.New([]byte("a\n"), 0))
	d.Dispatch(w, "recall", "")
	msg := popText(t, w)
	if !strings.Contains(msg, "1 lines in history") {
		t.Fatalf("message = %q", msg)
	}
}

type fakeRecaller struct {
	query string
}

func (r *fakeRecaller) Recall(wld *world.World, query string) { r.query = query }

func TestRecallWithQueryDelegatesToRecaller(t *testing.T) {
	fr := &fakeRecaller{}
	d := &Dispatcher{Recaller: fr}
	w := newTestWorld()
	d.Dispatch(w, "recall", "10")
	if fr.query != "10" {
		t.Fatalf("recaller query = %q, want 10", fr.query)
	}
}
