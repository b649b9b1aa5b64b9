// Package main provides the entry point for the archivesearch CLI.
package main

import (
	"os"

	"github.com/shinnku-archive/archivesearch/cmd/archivesearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
