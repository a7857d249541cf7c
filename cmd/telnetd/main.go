package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "telnetd",
	Short: "Line-oriented TCP command server",
	Long: `telnetd serves a small command shell over plain TCP. Clients send one
command per line; responses are written back and the connection is closed
gracefully on quit.

Use 'telnetd serve' to run the daemon and 'telnetd send' to run a command
against a running daemon.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sendCmd)
}
