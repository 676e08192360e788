package main

import (
	"os"

	"github.com/fluxgate/fluxgate/cmd/fluxgate/commands"
)

func main() {
	if err := commands.NewCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
