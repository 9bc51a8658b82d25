// Package main is the entry point for the classiflow binary.
package main

import (
	"os"

	"github.com/koustreak/classiflow/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
