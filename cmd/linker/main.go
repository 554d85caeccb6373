// Command linker is the CLI entry point for the knowledge engine.
package main

import (
	"fmt"
	"os"

	"github.com/maxchen228/linker/internal/cmd"
)

// Version is the current version of the linker CLI, injected at build
// time via -ldflags.
var Version = "dev"

func main() {
	cmd.Version = Version
	rootCmd := cmd.NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
