// Package main provides the entry point for the quiver CLI.
package main

import "github.com/powderline/quiver/cmd/quiver/cmd"

// Version information populated by goreleaser.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd.Execute(version, commit, date)
}
