// Package main provides the entry point for the mcp-bookmark CLI.
package main

import (
	"os"

	"github.com/nakamura-shuta/mcp-bookmark/cmd/mcp-bookmark/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
