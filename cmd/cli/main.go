package main

import (
	"os"

	"github.com/orgpulse/orgpulse/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
