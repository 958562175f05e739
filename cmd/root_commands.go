package cmd

import (
	"github.com/spf13/cobra"
)

// AddCommands registers every planshare subcommand on root.
func AddCommands(root *cobra.Command) {
	root.PersistentFlags().StringVar(&projectFlag, "project", "", "Project directory (defaults to the enclosing repository)")

	root.AddCommand(NewShareCmd())
	root.AddCommand(NewPullCmd())
	root.AddCommand(NewListCmd())
	root.AddCommand(NewStatusCmd())
	root.AddCommand(NewShowCmd())
	root.AddCommand(NewFormatCmd())
	root.AddCommand(NewWatchCmd())
	root.AddCommand(NewLinkCmd())
	root.AddCommand(NewRememberCmd())
	root.AddCommand(NewReviewCmd())
	root.AddCommand(NewServeCmd())
	root.AddCommand(NewVersionCmd())
}
