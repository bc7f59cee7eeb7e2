// Package main is the entry point for the loreclaw CLI.
package main

import (
	"os"

	"github.com/LoreClaw/LoreClaw/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
