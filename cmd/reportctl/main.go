package main

import (
	"os"

	"report_renderer/cmd/reportctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
