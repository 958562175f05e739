package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/mattsolo1/grove-core/cli"
	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-planshare/pkg/plan"
	"github.com/mattsolo1/grove-planshare/pkg/planshare"
)

var statusSet []string

var statusOrder = []plan.Status{
	plan.StatusCompleted,
	plan.StatusInProgress,
	plan.StatusPending,
	plan.StatusCancelled,
}

func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [chat-id]",
		Short: "Show task progress of a shared plan, or update task statuses",
		Long: `Show how many tasks of a shared plan are in each status. With --set, update
one or more tasks and re-share the plan in place.

Examples:
  planshare status
  planshare status 3f2a --set 2.1=completed --set 3=in_progress`,
		Args: cobra.MaximumNArgs(1),
		RunE: runStatus,
	}
	cmd.Flags().StringArrayVar(&statusSet, "set", nil, "Set a task status as PATH=STATUS, e.g. 2.1=completed")
	return cmd
}

type statusUpdate struct {
	path   []int
	status plan.Status
}

func parseStatusUpdate(raw string) (statusUpdate, error) {
	rawPath, rawStatus, ok := strings.Cut(raw, "=")
	if !ok {
		return statusUpdate{}, fmt.Errorf("invalid --set %q: expected PATH=STATUS", raw)
	}
	path, err := planshare.ParsePath(rawPath)
	if err != nil {
		return statusUpdate{}, err
	}
	status, err := plan.ParseStatus(rawStatus)
	if err != nil {
		return statusUpdate{}, err
	}
	return statusUpdate{path: path, status: status}, nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	var chatID string
	if len(args) > 0 {
		chatID = args[0]
	}

	updates := make([]statusUpdate, 0, len(statusSet))
	for _, raw := range statusSet {
		u, err := parseStatusUpdate(raw)
		if err != nil {
			return err
		}
		updates = append(updates, u)
	}

	svc, _, err := loadService()
	if err != nil {
		return err
	}
	projectDir, err := resolveProject()
	if err != nil {
		return err
	}
	ctx := context.Background()

	pulled, err := svc.Pull(ctx, chatID, projectDir)
	if err != nil {
		return err
	}
	p := pulled.Plan
	for _, u := range updates {
		res, err := svc.SetItemStatus(ctx, pulled.ChatID, u.path, u.status)
		if err != nil {
			return err
		}
		p = &res.Plan
	}

	counts := p.Counts()
	out := colorWriter(cmd)
	if cli.GetOptions(cmd).JSONOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"chat_id": pulled.ChatID,
			"title":   p.Title,
			"total":   p.Total(),
			"counts":  counts,
		})
	}

	fmt.Fprintf(out, "Plan: %s\n", color.CyanString(p.Title))
	fmt.Fprintf(out, "Progress: %d/%d completed\n", counts[plan.StatusCompleted], p.Total())
	for _, st := range statusOrder {
		if counts[st] == 0 {
			continue
		}
		fmt.Fprintf(out, "  %-12s %d\n", st, counts[st])
	}
	return nil
}
