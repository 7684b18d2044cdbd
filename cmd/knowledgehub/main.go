// Package main provides the entry point for the knowledgehub CLI.
package main

import (
	"os"

	"github.com/qeforge/knowledgehub/cmd/knowledgehub/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
