// Package mcp implements detection, parsing and the keyed reset
// exchange of the Mud Client Protocol, not to be confused with the
// unrelated JSON-RPC "Model Context Protocol" that happens to share
// the acronym.
package mcp

import "strings"

// Prefix is the three-byte marker that identifies an MCP line.
const Prefix = "#$#"

// IsMCP reports whether line begins with the MCP prefix.
func IsMCP(line []byte) bool {
	return len(line) >= 3 && line[0] == '#' && line[1] == '$' && line[2] == '#'
}

// Kind distinguishes the three textual forms an MCP message may take.
type Kind int

const (
	// Ordinary is "#$#name key k1: v1 k2: v2 ...".
	Ordinary Kind = iota
	// MultilineContinuation is "#$#* key k: v", where v runs to the
	// end of the line rather than stopping at the next space.
	MultilineContinuation
	// MultilineEnd is "#$#: key".
	MultilineEnd
)

// KeyVal is one key/value pair of an ordinary MCP message.
type KeyVal struct {
	Key   string
	Value string
}

// Message is a parsed MCP line.
type Message struct {
	Kind Kind
	Name string
	Key  string
	KV   []KeyVal
}

// Parse parses a complete MCP line (including the leading "#$#" and
// any trailing CR/LF) into a Message. It reports ok=false if the line
// does not parse as valid MCP, in which case the line should be
// forwarded unaltered rather than acted upon.
func Parse(line []byte) (Message, bool) {
	s := string(line)
	s = strings.TrimRight(s, "\r\n")
	if !strings.HasPrefix(s, Prefix) {
		return Message{}, false
	}
	s = s[len(Prefix):]

	name, rest, ok := splitToken(s)
	if !ok {
		return Message{}, false
	}
	name = strings.ToLower(name)

	// Every name but the keyless "mcp" handshake carries a key token
	// right after it, terminated by whitespace or end of line; unlike
	// the name and the multiline subkey below, running off the end of
	// the line here is not a parse error.
	var key string
	if name != "mcp" {
		rest = strings.TrimLeft(rest, " ")
		key, rest = splitTokenOrEOL(rest)
	}

	switch name {
	case ":":
		if key == "" {
			return Message{}, false
		}
		return Message{Kind: MultilineEnd, Name: name, Key: key}, true

	case "*":
		subkeyTok, value, ok := splitToken(rest)
		if !ok || len(subkeyTok) < 2 || !strings.HasSuffix(subkeyTok, ":") {
			return Message{}, false
		}
		subkey := strings.ToLower(strings.TrimSuffix(subkeyTok, ":"))
		return Message{
			Kind: MultilineContinuation,
			Name: name,
			Key:  key,
			KV:   []KeyVal{{Key: subkey, Value: value}},
		}, true
	}

	kvs, ok := parseKeyVals(rest)
	if !ok {
		return Message{}, false
	}

	return Message{Kind: Ordinary, Name: name, Key: key, KV: kvs}, true
}

// Get returns the value of the first key/value pair named key
// (case-sensitive, matching the reference's lowercased key storage),
// and whether it was present.
func (m Message) Get(key string) (string, bool) {
	for _, kv := range m.KV {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// splitToken returns the token up to (but not including) the next
// space, and the remainder after that space (with no leading space
// skip — callers that need whitespace-skipping do it themselves,
// matching the reference's explicit "skip whitespace" steps). ok is
// false if the string ends before any space is found (an unterminated
// token), mirroring factor_mcp_msg's NUL-before-space failure.
func splitToken(s string) (tok, rest string, ok bool) {
	i := strings.IndexByte(s, ' ')
	if i < 0 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}

// splitTokenOrEOL is splitToken without the unterminated-token failure:
// reaching the end of the string ends the token instead of rejecting
// it, matching the reference's generic key scan (as opposed to its
// name and multiline-subkey scans, which do reject on EOL).
func splitTokenOrEOL(s string) (tok, rest string) {
	i := strings.IndexByte(s, ' ')
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i+1:]
}

// parseKeyVals parses a whitespace-separated "key: value" sequence,
// where a value may be a quoted string with backslash escaping or a
// bare token terminated by whitespace.
func parseKeyVals(s string) ([]KeyVal, bool) {
	var kvs []KeyVal
	for {
		s = strings.TrimLeft(s, " ")
		if s == "" {
			return kvs, true
		}

		i := strings.IndexByte(s, ' ')
		if i < 0 {
			return nil, false
		}
		keyTok := s[:i]
		if len(keyTok) < 2 || keyTok[len(keyTok)-1] != ':' {
			return nil, false
		}
		key := strings.ToLower(keyTok[:len(keyTok)-1])
		s = s[i+1:]

		s = strings.TrimLeft(s, " ")
		if s == "" {
			return nil, false
		}

		var val string
		if s[0] == '"' {
			v, rem, ok := parseQuoted(s[1:])
			if !ok {
				return nil, false
			}
			val = v
			s = rem
		} else {
			j := strings.IndexByte(s, ' ')
			if j < 0 {
				val = s
				s = ""
			} else {
				val = s[:j]
				s = s[j+1:]
			}
		}

		kvs = append(kvs, KeyVal{Key: key, Value: val})
	}
}

// parseQuoted scans a backslash-escaped quoted string starting just
// after the opening quote, returning the raw (still-escaped) contents
// up to the closing quote and the remainder of the line after it.
func parseQuoted(s string) (val, rest string, ok bool) {
	quote := false
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' {
			quote = !quote
		}
		if s[i] == '"' && !quote {
			return s[:i], s[i+1:], true
		}
		if s[i] == '"' && quote {
			quote = false
		}
	}
	return "", "", false
}
