// Package main boots the catalog delta-sync CLI.
package main

import (
	"fmt"
	"os"

	"github.com/fairyhunter13/catalog-delta-sync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
