// Package config implements the per-world "key = value" configuration
// file format and the key-by-name accessor registry that both the file
// loader and the in-band getopt/setopt commands use to read and write
// a World's Options.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mooproxy/mooproxy/internal/domain/world"
)

// Source distinguishes a key access originating from the on-disk
// config file from one originating from a connected user's getopt/
// setopt command; authstring is readable from the former but not the
// latter, so its current value is never echoed back to a client.
type Source int

const (
	SourceUser Source = iota
	SourceFile
)

// GetStatus is the outcome of a Get call.
type GetStatus int

const (
	GetOK GetStatus = iota
	GetNotFound
	GetPermissionDenied
)

// SetStatus is the outcome of a Set call.
type SetStatus int

const (
	SetOK SetStatus = iota
	SetNotFound
	SetPermissionDenied
	SetInvalid
)

type keyDef struct {
	name string
	set  func(w *world.World, raw string, src Source) (SetStatus, error)
	get  func(w *world.World, src Source) (string, GetStatus)
}

var keyDB = []keyDef{
	{"listenport", setListenPort, getLong(func(w *world.World) int64 { return int64(w.Options.ListenPort) })},
	{"authstring", setAuthString, getAuthString},
	{"host", setString(func(w *world.World) *string { return &w.Options.Host }), getString(func(w *world.World) string { return w.Options.Host })},
	{"port", setPort, getLong(func(w *world.World) int64 { return int64(w.Options.Port) })},
	{"commandstring", setString(func(w *world.World) *string { return &w.Options.CommandString }), getString(func(w *world.World) string { return w.Options.CommandString })},
	{"infostring", setString(func(w *world.World) *string { return &w.Options.InfoString }), getString(func(w *world.World) string { return w.Options.InfoString })},
	{"logging_enabled", setBool(func(w *world.World) *bool { return &w.Options.LoggingEnabled }), getBool(func(w *world.World) bool { return w.Options.LoggingEnabled })},
	{"context_on_connect", setContextOnConnect, getLong(func(w *world.World) int64 { return int64(w.Options.ContextOnConnect) })},
	{"max_buffered_size", setLongRangedDirect(func(w *world.World) *int64 { return &w.Options.MaxBufferedSize }, 0, "Max buffered size"), getLong(func(w *world.World) int64 { return w.Options.MaxBufferedSize })},
	{"max_history_size", setLongRangedDirect(func(w *world.World) *int64 { return &w.Options.MaxHistorySize }, 0, "Max history size"), getLong(func(w *world.World) int64 { return w.Options.MaxHistorySize })},
	{"strict_commands", setBool(func(w *world.World) *bool { return &w.Options.StrictCommands }), getBool(func(w *world.World) bool { return w.Options.StrictCommands })},
}

// List returns every recognized key name, in table order.
func List() []string {
	names := make([]string, len(keyDB))
	for i, k := range keyDB {
		names[i] = k.name
	}
	return names
}

// Get reads the named option's current value as a display string.
func Get(w *world.World, key string, src Source) (string, GetStatus) {
	for _, k := range keyDB {
		if k.name == key {
			return k.get(w, src)
		}
	}
	return "", GetNotFound
}

// Set parses raw and writes the named option, reporting the outcome.
// On SetInvalid the returned error carries a user-readable message and
// the target option is left unchanged.
func Set(w *world.World, key, raw string, src Source) (SetStatus, error) {
	for _, k := range keyDB {
		if k.name == key {
			return k.set(w, raw, src)
		}
	}
	return SetNotFound, nil
}

func getString(f func(*world.World) string) func(*world.World, Source) (string, GetStatus) {
	return func(w *world.World, _ Source) (string, GetStatus) { return f(w), GetOK }
}

func getLong(f func(*world.World) int64) func(*world.World, Source) (string, GetStatus) {
	return func(w *world.World, _ Source) (string, GetStatus) {
		return strconv.FormatInt(f(w), 10), GetOK
	}
}

func getBool(f func(*world.World) bool) func(*world.World, Source) (string, GetStatus) {
	return func(w *world.World, _ Source) (string, GetStatus) {
		if f(w) {
			return "true", GetOK
		}
		return "false", GetOK
	}
}

func getAuthString(w *world.World, src Source) (string, GetStatus) {
	if src == SourceUser {
		return "", GetPermissionDenied
	}
	return w.Options.AuthString, GetOK
}

func setString(field func(*world.World) *string) func(*world.World, string, Source) (SetStatus, error) {
	return func(w *world.World, raw string, _ Source) (SetStatus, error) {
		*field(w) = raw
		return SetOK, nil
	}
}

func setAuthString(w *world.World, raw string, _ Source) (SetStatus, error) {
	if raw == "" {
		return SetInvalid, fmt.Errorf("the authstring may not be empty")
	}
	w.Options.AuthString = raw
	return SetOK, nil
}

func setListenPort(w *world.World, raw string, _ Source) (SetStatus, error) {
	v, err := parseRanged(raw, 1, 65535, "Port numbers")
	if err != nil {
		return SetInvalid, err
	}
	w.Options.ListenPort = int(v)
	return SetOK, nil
}

func setPort(w *world.World, raw string, _ Source) (SetStatus, error) {
	v, err := parseRanged(raw, 1, 65535, "Port numbers")
	if err != nil {
		return SetInvalid, err
	}
	w.Options.Port = int(v)
	return SetOK, nil
}

func setBool(field func(*world.World) *bool) func(*world.World, string, Source) (SetStatus, error) {
	return func(w *world.World, raw string, _ Source) (SetStatus, error) {
		v, err := parseBool(raw)
		if err != nil {
			return SetInvalid, err
		}
		*field(w) = v
		return SetOK, nil
	}
}

func setLongRangedDirect(field func(*world.World) *int64, min int64, label string) func(*world.World, string, Source) (SetStatus, error) {
	return func(w *world.World, raw string, _ Source) (SetStatus, error) {
		v, err := parseRanged(raw, min, 1<<62, label)
		if err != nil {
			return SetInvalid, err
		}
		*field(w) = v
		return SetOK, nil
	}
}

func setContextOnConnect(w *world.World, raw string, _ Source) (SetStatus, error) {
	v, err := parseRanged(raw, 0, 1<<62, "Context on connect")
	if err != nil {
		return SetInvalid, err
	}
	w.Options.ContextOnConnect = int(v)
	return SetOK, nil
}

func parseRanged(raw string, min, max int64, label string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", label)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("%s must be between %d and %d", label, min, max)
	}
	return v, nil
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes", "on", "1":
		return true, nil
	case "false", "no", "off", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected a boolean (true/yes/on/1 or false/no/off/0)")
}
