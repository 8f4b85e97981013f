package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mooproxy/mooproxy/internal/adapter/outbound/lock"
	"github.com/mooproxy/mooproxy/internal/adapter/outbound/logger"
	"github.com/mooproxy/mooproxy/internal/adapter/outbound/metrics"
	"github.com/mooproxy/mooproxy/internal/adapter/outbound/netio"
	"github.com/mooproxy/mooproxy/internal/adapter/outbound/resolver"
	"github.com/mooproxy/mooproxy/internal/config"
	"github.com/mooproxy/mooproxy/internal/domain/auth"
	"github.com/mooproxy/mooproxy/internal/domain/command"
	"github.com/mooproxy/mooproxy/internal/domain/recall"
	"github.com/mooproxy/mooproxy/internal/domain/timer"
	"github.com/mooproxy/mooproxy/internal/domain/world"
	"github.com/mooproxy/mooproxy/internal/engine"
	"github.com/mooproxy/mooproxy/internal/panichandler"
	"github.com/mooproxy/mooproxy/internal/telemetry"
)

// worldDirs is the §6.3 filesystem layout rooted at a home directory.
type worldDirs struct {
	root, worlds, logs, locks string
}

func configDirs(home string) worldDirs {
	root := filepath.Join(home, ".mooproxy")
	return worldDirs{
		root:   root,
		worlds: filepath.Join(root, "worlds"),
		logs:   filepath.Join(root, "logs"),
		locks:  filepath.Join(root, "locks"),
	}
}

// run implements the startup sequence of §6.1/§6.3: resolve which
// world to run, create its home-directory layout, load and validate
// its config, acquire its lock, bind its listener, and hand everything
// to an engine.Engine until a signal or a "shutdown" command ends it.
func run() error {
	settings, err := config.LoadSettings()
	if err != nil {
		return exitf(4, "loading daemon settings: %w", err)
	}

	name := worldName
	if name == "" {
		name = settings.World
	}
	if name == "" {
		return exitf(3, "no world specified: pass -w/--world or set 'world' in the daemon settings")
	}

	if settings.Home == "" {
		return exitf(6, "could not determine a home directory")
	}

	dirs := configDirs(settings.Home)
	for _, d := range []string{dirs.root, dirs.worlds, dirs.logs, dirs.locks} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return exitf(4, "creating %s: %w", d, err)
		}
	}

	logLevel := parseLogLevel(settings.LogLevel)
	var handler slog.Handler
	if settings.DevMode {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	}
	log := slog.New(handler)

	wld := world.New(name, filepath.Join(dirs.worlds, name))

	if _, err := os.Stat(wld.ConfigFile); err != nil {
		return exitf(7, "no such world %q: %w", name, err)
	}
	if err := config.LoadFile(wld, wld.ConfigFile); err != nil {
		return exitf(8, "%w", err)
	}

	if wld.Options.AuthString == "" {
		return exitf(5, "world %q has no authstring configured", name)
	}
	if auth.IsHashed(wld.Options.AuthString) {
		wld.Secret = auth.NewHash(wld.Options.AuthString)
	} else {
		wld.Secret = auth.NewLiteral(wld.Options.AuthString)
	}
	wld.TokenBucket = auth.NewDefaultTokenBucket()

	lk, err := lock.Acquire(filepath.Join(dirs.locks, name))
	if err != nil {
		return exitf(6, "acquiring lock for world %q: %w", name, err)
	}
	defer lk.Release()

	lg := logger.New(dirs.logs, name, log)
	lg.SetEnabled(wld.Options.LoggingEnabled)
	wld.Logger = lg
	defer lg.Close()
	wld.Timer = timer.New(timer.Hooks{
		OnDay: func(t time.Time) { lg.Reopen(t) },
	})

	wld.ListenPort = wld.Options.ListenPort
	ln, err := netio.Listen("tcp", fmt.Sprintf(":%d", wld.ListenPort), wld.Secret, wld.TokenBucket)
	if err != nil {
		// net.Listen does not expose socket/bind/listen as distinct
		// syscalls the way the reference does; 10 (bind) is the
		// nearest single code for "could not take up the port".
		return exitf(10, "listening on port %d: %w", wld.ListenPort, err)
	}
	defer ln.Close()

	m := metrics.New(name)
	if settings.MetricsAddr != "" {
		metricsSrv, err := metrics.Serve(settings.MetricsAddr, m.Registry)
		if err != nil {
			log.Warn("failed to start metrics server", "addr", settings.MetricsAddr, "error", err)
		} else {
			defer metricsSrv.Shutdown(5 * time.Second)
			log.Info("serving metrics", "addr", metricsSrv.Addr().String())
		}
	}

	providers, err := telemetry.Setup(settings.DevMode, os.Stderr)
	if err != nil {
		return exitf(4, "setting up telemetry: %w", err)
	}
	defer providers.Shutdown(context.Background())

	guard := panichandler.New(crashFilePath(settings.Home), func(msg string) {
		c := ln.Client()
		if c == nil {
			return
		}
		fmt.Fprintf(c, "%s%s%s", wld.Options.InfoString, msg, world.MessageTerminator)
	})
	defer guard.Guard()

	// The resolver Service is shared between the "connect" command
	// handler and the engine's own reconnect attempts: both must
	// observe the same in-flight resolve, since only the engine's
	// tick loop drains Ready().
	resolverSvc := resolver.NewService()

	wld.CommandDispatcher = &command.Dispatcher{
		Connector: resolverSvc,
		Recaller:  &recall.Recaller{},
		StartedAt: time.Now(),
	}

	eng := engine.New(wld, resolverSvc, netio.NewConnector(), ln, log)
	eng.Metrics = m
	eng.Telemetry = providers
	eng.PanicGuard = guard

	go ln.Serve(wld)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting", "world", name, "listen_port", wld.ListenPort)
	eng.Run(ctx)
	log.Info("stopped", "world", name)

	return nil
}

func crashFilePath(home string) string {
	return filepath.Join(home, ".mooproxy-crash.log")
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
