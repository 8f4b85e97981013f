// Package cmd implements the mooproxy command line: flag parsing,
// daemon-level settings, and the startup sequence that wires every
// adapter into a running internal/engine.Engine for one world.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mooproxy/mooproxy/internal/config"
)

var (
	settingsFile string
	worldName    string
	showVersion  bool
	showLicense  bool
)

// exitError carries the process exit code spec.md §6.1 assigns to a
// startup failure alongside the message to print (if any). A nil err
// means the message was already printed by the handler that returned
// it.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func exitf(code int, format string, args ...any) error {
	return &exitError{code: code, err: fmt.Errorf(format, args...)}
}

func exitSilently(code int) error {
	return &exitError{code: code}
}

var rootCmd = &cobra.Command{
	Use:   "mooproxy",
	Short: "A MUD/MOO intercepting proxy",
	Long: `mooproxy sits between a client and a MUD/MOO server: it holds the
server connection open and buffers traffic while no client is
attached, so a flaky client connection never drops the game session.

Configuration:
  Daemon settings (home directory, default world, log level) are
  loaded from mooproxy.yaml in the current directory, $HOME/.mooproxy/,
  or /etc/mooproxy/, and may be overridden with MOOPROXY_-prefixed
  environment variables. Each world's own options live in its
  per-world config file under $HOME/.mooproxy/worlds/.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          runRoot,
}

func init() {
	cobra.OnInitialize(func() { config.InitViper(settingsFile) })

	rootCmd.Flags().StringVar(&settingsFile, "config", "", "daemon settings file (default: search standard locations)")
	rootCmd.Flags().StringVarP(&worldName, "world", "w", "", "world to run")
	rootCmd.Flags().BoolVarP(&showVersion, "version", "V", false, "print version and exit")
	rootCmd.Flags().BoolVarP(&showLicense, "license", "L", false, "print license and exit")

	rootCmd.SetHelpFunc(func(c *cobra.Command, args []string) {
		c.Root().UsageFunc()(c)
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, c.Long)
		os.Exit(1)
	})
}

// Execute runs the root command and translates any returned error into
// the matching process exit code, per spec.md §6.1's table.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			if ee.err != nil {
				fmt.Fprintln(os.Stderr, ee.err)
			}
			os.Exit(ee.code)
		}

		fmt.Fprintln(os.Stderr, err)
		if isUnknownFlagError(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// isUnknownFlagError recognizes pflag's unrecognized-flag error text,
// which cobra returns as a plain error rather than any named type.
func isUnknownFlagError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "unknown flag") || strings.Contains(msg, "unknown shorthand flag")
}

func runRoot(c *cobra.Command, args []string) error {
	if showVersion {
		fmt.Println(Version)
		return exitSilently(1)
	}
	if showLicense {
		fmt.Println(licenseText)
		return exitSilently(1)
	}
	return run()
}
