package main

// Main entry point of the application
// Executes the Cobra root command; any error exits with status 1

import (
	"fmt"
	"os"

	"polymarket-monitor/cmd/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
