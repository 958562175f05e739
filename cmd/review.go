package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func NewReviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "review <chat-id> <schedule>",
		Short: "Schedule a recurring review reminder for a shared plan",
		Long: `Register an automation that asks the chat to review the plan on a cron
schedule. A review scheduled earlier for the same plan is replaced.

Example:
  planshare review 3f2a "0 9 * * 1"`,
		Args: cobra.ExactArgs(2),
		RunE: runReview,
	}
}

func runReview(cmd *cobra.Command, args []string) error {
	svc, _, err := loadService()
	if err != nil {
		return err
	}
	automation, err := svc.ScheduleReview(context.Background(), args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(colorWriter(cmd), "%s Scheduled %q (%s)\n", color.GreenString("✓"), automation.Name, automation.Schedule)
	return nil
}
