// Package command implements the in-band command language: a static
// table of command names dispatched by the configured command prefix,
// executed against a world.World and replying through its immediate or
// buffered client-message queues.
package command

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mooproxy/mooproxy/internal/config"
	"github.com/mooproxy/mooproxy/internal/domain/world"
)

// Version is the string reported by the "version" command.
const Version = "2.0.0"

var helpText = []string{
	"Commands:",
	"  help                       Show this help message.",
	"  quit                       Disconnect from mooproxy.",
	"  shutdown                   Shut down the mooproxy.",
	"  connect [<host> [<port>]]  Connect to the server. If the arguments are",
	"                               given, use those instead of the set options.",
	"  disconnect                 Disconnect from the server.",
	"  listopts                   List the available option names.",
	"  getopt <option>            Query the value of one option.",
	"  setopt <option> <value>    Set the value of one option.",
	"  recall [<query>]           Recall lines, or show the number of lines.",
	"  version                    Show the mooproxy version.",
	"  date                       Show the current time and date.",
	"  uptime                     Show mooproxy's starting time and uptime.",
	"  world                      Print the name of the current world.",
}

// Connector kicks off an asynchronous resolve-then-connect attempt for
// host:port. It is an interface, not a direct dependency on the
// resolver/engine packages, so Dispatcher stays free of their
// internals; the engine supplies a concrete implementation at startup.
type Connector interface {
	StartConnect(wld *world.World, host string, port int)
}

// Recaller executes a non-empty recall query against a world's
// history. The dispatcher handles the bare, argument-less "recall"
// invocation (report the history size) itself.
type Recaller interface {
	Recall(wld *world.World, query string)
}

// Dispatcher implements world.CommandDispatcher, routing a command
// word and its arguments to the matching handler.
type Dispatcher struct {
	Connector Connector
	Recaller  Recaller
	StartedAt time.Time
	Now       func() time.Time
}

type handlerFunc func(d *Dispatcher, wld *world.World, cmd, args string)

var commandDB = map[string]handlerFunc{
	"help":       (*Dispatcher).cmdHelp,
	"quit":       (*Dispatcher).cmdQuit,
	"shutdown":   (*Dispatcher).cmdShutdown,
	"connect":    (*Dispatcher).cmdConnect,
	"disconnect": (*Dispatcher).cmdDisconnect,
	"listopts":   (*Dispatcher).cmdListopts,
	"getopt":     (*Dispatcher).cmdGetopt,
	"setopt":     (*Dispatcher).cmdSetopt,
	"recall":     (*Dispatcher).cmdRecall,
	"version":    (*Dispatcher).cmdVersion,
	"date":       (*Dispatcher).cmdDate,
	"uptime":     (*Dispatcher).cmdUptime,
	"world":      (*Dispatcher).cmdWorld,
}

// Dispatch looks cmd up in the command table and, if found, runs it
// against wld with args, reporting true. An unknown cmd reports false
// and does nothing, leaving the strict_commands decision to the
// caller.
func (d *Dispatcher) Dispatch(wld *world.World, cmd, args string) bool {
	h, ok := commandDB[cmd]
	if !ok {
		return false
	}
	h(d, wld, cmd, args)
	return true
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// refuseArguments complains and reports true if args holds anything
// other than whitespace; used by every no-argument command.
func refuseArguments(wld *world.World, cmd, args string) bool {
	if strings.TrimSpace(args) != "" {
		wld.MessageToClient(fmt.Sprintf("The command `%s' does not take arguments.", cmd))
		return true
	}
	return false
}

func (d *Dispatcher) cmdHelp(wld *world.World, cmd, args string) {
	if refuseArguments(wld, cmd, args) {
		return
	}
	for _, line := range helpText {
		wld.MessageToClient(line)
	}
}

func (d *Dispatcher) cmdQuit(wld *world.World, cmd, args string) {
	if refuseArguments(wld, cmd, args) {
		return
	}
	wld.MessageToClient("Closing connection.")
	wld.Flags |= world.ClientQuit
}

func (d *Dispatcher) cmdShutdown(wld *world.World, cmd, args string) {
	if refuseArguments(wld, cmd, args) {
		return
	}
	wld.MessageToClientBuffered("Shutting down.")
	wld.Flags |= world.Shutdown
}

func (d *Dispatcher) cmdConnect(wld *world.World, cmd, args string) {
	if wld.ServerStatus == world.ServerConnected ||
		wld.ServerStatus == world.ServerConnecting ||
		wld.ServerStatus == world.ServerResolving {
		wld.MessageToClient("Already connected.")
		return
	}

	host := wld.Options.Host
	port := wld.Options.Port
	fields := strings.Fields(args)
	if len(fields) > 0 {
		host = fields[0]
	}
	if len(fields) > 1 {
		if p, err := strconv.Atoi(fields[1]); err == nil {
			port = p
		}
	}

	if d.Connector == nil {
		wld.MessageToClient("Connecting is not available.")
		return
	}

	wld.MessageToClient(fmt.Sprintf("Resolving host `%s'...", host))
	d.Connector.StartConnect(wld, host, port)
}

func (d *Dispatcher) cmdDisconnect(wld *world.World, cmd, args string) {
	if refuseArguments(wld, cmd, args) {
		return
	}
	if wld.ServerStatus == world.ServerConnected {
		wld.MessageToClientBuffered("Disconnected.")
	} else {
		wld.MessageToClient("Not connected, so cannot disconnect.")
	}
	wld.Flags |= world.ServerQuit
}

func (d *Dispatcher) cmdListopts(wld *world.World, cmd, args string) {
	if refuseArguments(wld, cmd, args) {
		return
	}
	wld.MessageToClient("Options:")

	line := "   "
	for _, name := range config.List() {
		if len(line)+len(name) > 65 {
			wld.MessageToClient(line)
			line = "   "
		}
		line += name + ", "
	}
	line = strings.TrimSuffix(line, ", ") + "."
	wld.MessageToClient(line)
}

func (d *Dispatcher) cmdGetopt(wld *world.World, cmd, args string) {
	name := strings.TrimSpace(args)
	if name == "" {
		wld.MessageToClient("Use: getopt <option>")
		return
	}

	val, status := config.Get(wld, name, config.SourceUser)
	switch status {
	case config.GetOK:
		wld.MessageToClient(fmt.Sprintf("The option `%s' is `%s'.", name, val))
	case config.GetNotFound:
		wld.MessageToClient(fmt.Sprintf("No such option, `%s'.", name))
	case config.GetPermissionDenied:
		wld.MessageToClient(fmt.Sprintf("The option `%s' cannot be read.", name))
	}
}

func (d *Dispatcher) cmdSetopt(wld *world.World, cmd, args string) {
	key, val, found := strings.Cut(strings.TrimLeft(args, " "), " ")
	if !found {
		wld.MessageToClient("Use: setopt <option> <value>")
		return
	}
	val = removeEnclosingQuotes(strings.TrimLeft(val, " "))

	status, err := config.Set(wld, key, val, config.SourceUser)
	switch status {
	case config.SetOK:
		shown := val
		if cur, gstatus := config.Get(wld, key, config.SourceUser); gstatus == config.GetOK {
			shown = cur
		}
		wld.MessageToClient(fmt.Sprintf("The option `%s' is now `%s'.", key, shown))
	case config.SetNotFound:
		wld.MessageToClient(fmt.Sprintf("No such option, `%s'.", key))
	case config.SetPermissionDenied:
		wld.MessageToClient(fmt.Sprintf("The option `%s' cannot be written.", key))
	case config.SetInvalid:
		wld.MessageToClient(err.Error())
	}
}

func removeEnclosingQuotes(s string) string {
	if len(s) < 2 {
		return s
	}
	first, last := s[0], s[len(s)-1]
	if (first == '"' || first == '\'') && first == last {
		return s[1 : len(s)-1]
	}
	return s
}

func (d *Dispatcher) cmdRecall(wld *world.World, cmd, args string) {
	query := strings.TrimSpace(args)
	if query == "" {
		wld.MessageToClient(fmt.Sprintf("%d lines in history, using %d bytes.",
			wld.History.Count(), wld.History.Length()))
		return
	}

	if d.Recaller == nil {
		wld.MessageToClient("Recall is not available.")
		return
	}
	d.Recaller.Recall(wld, query)
}

func (d *Dispatcher) cmdVersion(wld *world.World, cmd, args string) {
	if refuseArguments(wld, cmd, args) {
		return
	}
	wld.MessageToClient(fmt.Sprintf("Mooproxy version %s.", Version))
}

func (d *Dispatcher) cmdDate(wld *world.World, cmd, args string) {
	if refuseArguments(wld, cmd, args) {
		return
	}
	wld.MessageToClient(fmt.Sprintf("The current date is %s.", d.now().Format(time.RFC1123)))
}

func (d *Dispatcher) cmdUptime(wld *world.World, cmd, args string) {
	if refuseArguments(wld, cmd, args) {
		return
	}
	up := d.now().Sub(d.StartedAt)
	days := int64(up.Hours()) / 24
	hh := int64(up.Hours()) % 24
	mm := int64(up.Minutes()) % 60
	ss := int64(up.Seconds()) % 60
	wld.MessageToClient(fmt.Sprintf("Started %s. Uptime is %d days, %02d:%02d:%02d.",
		d.StartedAt.Format(time.RFC1123), days, hh, mm, ss))
}

func (d *Dispatcher) cmdWorld(wld *world.World, cmd, args string) {
	if refuseArguments(wld, cmd, args) {
		return
	}
	wld.MessageToClient(fmt.Sprintf("The world is `%s'.", wld.Name))
}
