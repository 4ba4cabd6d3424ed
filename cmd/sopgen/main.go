// Package main is the entry point for the sopgen CLI.
package main

import (
	"os"

	"github.com/amitmahapatrav5/genai-sop-generator/cmd/sopgen/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
