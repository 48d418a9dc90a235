// Package main is the entry point for the supportctl command line.
package main

import (
	"os"

	"github.com/capitalize-ai/support-desk/internal/cli"
	_ "github.com/capitalize-ai/support-desk/internal/nats"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
