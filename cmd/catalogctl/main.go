// Package main provides the entry point for the catalogctl admin CLI.
package main

import (
	"os"

	"github.com/kailas-cloud/skuindex/cmd/catalogctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
