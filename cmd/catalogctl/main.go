// Package main is the entry point for the catalogctl CLI.
package main

import (
	"os"

	"github.com/kdimtricp/anilights/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
