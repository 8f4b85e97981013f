package mcp

import "testing"

func TestIsMCP(t *testing.T) {
	if !IsMCP([]byte("#$#mcp-negotiate-can x\n")) {
		t.Fatal("expected MCP detection")
	}
	if IsMCP([]byte("regular line\n")) {
		t.Fatal("regular line should not be detected as MCP")
	}
}

func TestParseOrdinary(t *testing.T) {
	msg, ok := Parse([]byte("#$#mcp-negotiate-can mehkey package: x min-version: 1.0 max-version: 1.0\n"))
	if !ok {
		t.Fatal("expected successful parse")
	}
	if msg.Kind != Ordinary || msg.Name != "mcp-negotiate-can" || msg.Key != "mehkey" {
		t.Fatalf("got %+v", msg)
	}
	if v, ok := msg.Get("package"); !ok || v != "x" {
		t.Fatalf("package = %q, %v", v, ok)
	}
	if v, ok := msg.Get("min-version"); !ok || v != "1.0" {
		t.Fatalf("min-version = %q, %v", v, ok)
	}
}

func TestParseKeylessMCP(t *testing.T) {
	msg, ok := Parse([]byte("#$#mcp authentication-key: foobar version: 1.0 to: 2.1\n"))
	if !ok {
		t.Fatal("expected successful parse")
	}
	if msg.Name != "mcp" {
		t.Fatalf("name = %q", msg.Name)
	}
	if v, ok := msg.Get("authentication-key"); !ok || v != "foobar" {
		t.Fatalf("authentication-key = %q, %v", v, ok)
	}
}

func TestParseQuotedValue(t *testing.T) {
	msg, ok := Parse([]byte(`#$#foo key k: "hello world"` + "\n"))
	if !ok {
		t.Fatal("expected successful parse")
	}
	if v, ok := msg.Get("k"); !ok || v != "hello world" {
		t.Fatalf("k = %q, %v", v, ok)
	}
}

func TestParseMultilineContinuation(t *testing.T) {
	msg, ok := Parse([]byte("#$#* mykey part: some text here\n"))
	if !ok {
		t.Fatal("expected successful parse")
	}
	if msg.Kind != MultilineContinuation {
		t.Fatalf("kind = %v", msg.Kind)
	}
	if v, ok := msg.Get("part"); !ok || v != "some text here" {
		t.Fatalf("part = %q, %v", v, ok)
	}
	if msg.Key != "mykey" {
		t.Fatalf("key = %q, want mykey", msg.Key)
	}
}

func TestParseMultilineEnd(t *testing.T) {
	msg, ok := Parse([]byte("#$#: mykey\n"))
	if !ok {
		t.Fatal("expected successful parse")
	}
	if msg.Kind != MultilineEnd || msg.Key != "mykey" {
		t.Fatalf("got %+v", msg)
	}
}

func TestParseInvalidFallsThrough(t *testing.T) {
	if _, ok := Parse([]byte("#$#garbage-no-space\n")); ok {
		t.Fatal("expected parse failure on unterminated name token")
	}
}

func TestHandshakeNegotiateCan(t *testing.T) {
	h := &Handshake{}
	keyMsg, _ := Parse([]byte("#$#mcp authentication-key: mykey version: 1.0 to: 2.1\n"))
	h.ObserveClientLine(keyMsg)
	if h.Key != "mykey" {
		t.Fatalf("key = %q", h.Key)
	}

	negMsg, _ := Parse([]byte("#$#mcp-negotiate-can x package: y min-version: 1.0 max-version: 1.0\n"))
	_, serverLine := h.ObserveClientLine(negMsg)
	if !h.Negotiated {
		t.Fatal("expected negotiated = true")
	}
	want := "#$#mcp-negotiate-can mykey package: dns-nl-icecrew-mcpreset min-version: 1.0 max-version: 1.0\n"
	if serverLine != want {
		t.Fatalf("serverLine = %q, want %q", serverLine, want)
	}
}

func TestResetLinesWithoutPriorNegotiation(t *testing.T) {
	h := &Handshake{}
	lines, negotiating := h.ResetLines()
	if !negotiating {
		t.Fatal("expected synthetic negotiation")
	}
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines (3 negotiate + 1 reset), got %d: %v", len(lines), lines)
	}
	if h.Negotiated || h.Key != "" {
		t.Fatal("state should be cleared after reset")
	}
}

func TestResetLinesWithPriorNegotiation(t *testing.T) {
	h := &Handshake{Negotiated: true, Key: "existingkey"}
	lines, negotiating := h.ResetLines()
	if negotiating {
		t.Fatal("should not re-negotiate")
	}
	if len(lines) != 1 || lines[0] != "#$#dns-nl-icecrew-mcpreset-reset existingkey\n" {
		t.Fatalf("lines = %v", lines)
	}
}
