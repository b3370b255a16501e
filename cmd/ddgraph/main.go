package main

import (
	"os"

	"ddgraph/cmd/ddgraph/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
