package mcp

import "fmt"

// ResetPackage is the MCP package name the proxy advertises for the
// keyed reset exchange.
const ResetPackage = "dns-nl-icecrew-mcpreset"

// Handshake tracks the negotiated state of the MCP keyed reset
// exchange for one connection: whether negotiation has happened, and
// the authentication key in play (either captured from the client's
// handshake, or proxy-chosen when a /reset is issued without prior
// negotiation).
type Handshake struct {
	Negotiated bool
	Key        string
}

// ObserveClientLine inspects a parsed client-originated MCP message
// for the two triggers the reference watches: the keyless "mcp"
// handshake carrying an authentication-key, and "mcp-negotiate-can"
// which provokes the proxy to advertise its reset package. It returns
// an informational message for the client (or "") and a line to send
// to the server (or "").
func (h *Handshake) ObserveClientLine(msg Message) (clientMsg, serverLine string) {
	if !h.Negotiated && msg.Name == "mcp" {
		if key, ok := msg.Get("authentication-key"); ok {
			h.Key = key
			clientMsg = "Got MCP key!"
		}
	}

	if !h.Negotiated && msg.Name == "mcp-negotiate-can" {
		h.Negotiated = true
		serverLine = fmt.Sprintf(
			"#$#mcp-negotiate-can %s package: %s min-version: 1.0 max-version: 1.0\n",
			h.Key, ResetPackage)
		if clientMsg == "" {
			clientMsg = "Caught mcp-negotiate-can! Meddling..."
		}
	}

	return clientMsg, serverLine
}

// ResetLines builds the full /reset sequence to send to the server:
// if negotiation has not yet occurred, a synthetic negotiation with a
// proxy-chosen key is injected first.
func (h *Handshake) ResetLines() (lines []string, negotiating bool) {
	if !h.Negotiated {
		h.Key = "mehkey"
		lines = append(lines,
			fmt.Sprintf("#$#mcp authentication-key: %s version: 1.0 to: 2.1\n", h.Key),
			fmt.Sprintf("#$#mcp-negotiate-can %s package: %s min-version: 1.0 max-version: 1.0\n", h.Key, ResetPackage),
			fmt.Sprintf("#$#mcp-negotiate-end %s\n", h.Key),
		)
		negotiating = true
	}

	lines = append(lines, fmt.Sprintf("#$#%s-reset %s\n", ResetPackage, h.Key))
	h.Key = ""
	h.Negotiated = false
	return lines, negotiating
}
