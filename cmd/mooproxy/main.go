// Command mooproxy runs a single-world MUD/MOO intercepting proxy
// process: it accepts client connections on a configured port,
// maintains one outbound connection to a game server, and buffers
// traffic across either side dropping.
package main

import "github.com/mooproxy/mooproxy/cmd/mooproxy/cmd"

func main() {
	cmd.Execute()
}
