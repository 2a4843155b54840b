// Command docroute is the entry point for the document routing service.
// It provides a CLI interface (via Cobra) for ingesting markdown documents,
// managing responsibility profiles, and routing content, plus an HTTP server
// exposing the same operations over REST.
package main

import (
	"fmt"
	"os"

	"github.com/ShreyasNK2006/docroute-go/cmd/docroute/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
