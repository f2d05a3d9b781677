// Package main provides the CLI for the karstconv geodata converter.
package main

import (
	"os"

	"github.com/karststack/karstconv/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
