package main

import (
	"os"

	"github.com/opd-ai/avdecc/cmd/avdeccctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		commands.PrintErr("Error: %v", err)
		os.Exit(1)
	}
}
