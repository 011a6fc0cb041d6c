// Package main is the entry point for the datamap CLI tool.
package main

import (
	"os"

	"github.com/kestrel-data/datamap/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
