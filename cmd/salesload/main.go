// Package main provides the salesload CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/salesload/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
