// Package main provides the entry point for the archon CLI.
package main

import (
	"os"

	"github.com/archon-iirc/archon/cmd/archon"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
