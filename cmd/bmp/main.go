// Package main is the entry point for the bmp CLI tool.
package main

import (
	"os"

	"github.com/gltg/bmp-api/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
