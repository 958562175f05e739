package main

import (
	"os"

	"github.com/mattsolo1/grove-core/cli"

	"github.com/mattsolo1/grove-planshare/cmd"
)

func main() {
	rootCmd := cli.NewStandardCommand(
		"planshare",
		"Share agent plans with humans through a chat backend",
	)

	cmd.AddCommands(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
