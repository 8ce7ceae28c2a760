package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┬─┐┌─┐┌─┐┬  ┬┌─┐┌─┐
  ├┬┘├┤ ├─┘│  ││  ├─┤
  ┴└─└─┘┴  ┴─┘┴└─┘┴ ┴
`

func main() {
	rootCmd := &cobra.Command{
		Use:   "replica",
		Short: "Server-authoritative object replication over WebSocket",
		Long: `Replica keeps a table of objects on a server authoritative and
mirrors it to any number of observers over WebSocket.

The server owns every object: creates, destroys, state payloads and
messages all originate there. Observers receive a tagged binary event
stream and hold a read-only mirror that survives reconnects.

Commands:
  serve    run an authority with the demo world and snapshotting
  observe  connect to an authority and print world changes
  bench    measure flush throughput and latency against an authority`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		observeCmd(),
		benchCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

// printBanner prints the replica ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}
