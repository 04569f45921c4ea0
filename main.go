// iisys answers questions about ERP tables in plain Russian.
//
// Entry point: initializes the Cobra root command and launches the chat
// TUI by default (no subcommand required).
package main

import (
	"os"

	"github.com/greenscale93/IIsys/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
