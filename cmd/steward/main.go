// Package main is the entry point for the steward CLI.
package main

import (
	"os"

	"github.com/ostrem/steward/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
