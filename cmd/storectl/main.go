// Command storectl is an operator CLI for the storefront services: it mints
// admin tokens, queries recommendations, and forces catalog cache refreshes.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
