// Package main is the entry point for the kortex CLI.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/kortex/kortex/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		os.Exit(1)
	}
}
