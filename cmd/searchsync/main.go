// Command searchsync keeps a search index in sync with the record store and
// searches it.
package main

import (
	"fmt"
	"os"
)

// Version is the searchsync version (can be overridden at build time).
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
