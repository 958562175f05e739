package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattsolo1/grove-core/cli"
	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-planshare/pkg/plan"
	"github.com/mattsolo1/grove-planshare/pkg/planshare"
)

var showFile string

func NewShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [chat-id]",
		Short: "Render a plan as a numbered task tree",
		Long: `Render a plan as a numbered task tree. The plan is pulled from the chat,
or read from --file when given. Task numbers are the paths accepted by
"planshare status --set".`,
		Args: cobra.MaximumNArgs(1),
		RunE: runShow,
	}
	cmd.Flags().StringVarP(&showFile, "file", "f", "", "Read the plan from a file instead of the chat")
	return cmd
}

func runShow(cmd *cobra.Command, args []string) error {
	var p *plan.Plan
	if showFile != "" {
		var err error
		p, err = readPlanInput(showFile, cmd.InOrStdin())
		if err != nil {
			return err
		}
	} else {
		var chatID string
		if len(args) > 0 {
			chatID = args[0]
		}
		svc, _, err := loadService()
		if err != nil {
			return err
		}
		projectDir, err := resolveProject()
		if err != nil {
			return err
		}
		pulled, err := svc.Pull(context.Background(), chatID, projectDir)
		if err != nil {
			return err
		}
		p = pulled.Plan
	}

	if cli.GetOptions(cmd).JSONOutput {
		data, err := p.EncodeJSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}

	renderTree(colorWriter(cmd), p)
	return nil
}

// renderTree writes the plan as an indented tree with 1-based task paths.
func renderTree(w io.Writer, p *plan.Plan) {
	fmt.Fprintln(w, color.New(color.Bold).Sprint(p.Title))
	if p.Description != "" {
		fmt.Fprintln(w, color.New(color.Faint).Sprint(p.Description))
	}
	if p.Total() == 0 {
		fmt.Fprintln(w, "  (no tasks)")
		return
	}
	p.Walk(func(path []int, item *plan.Item) bool {
		indent := strings.Repeat("  ", len(path))
		fmt.Fprintf(w, "%s%s %s %s %s\n",
			indent,
			statusGlyph(item.Status),
			color.New(color.Faint).Sprint(planshare.FormatPath(path)),
			priorityTag(item.Priority),
			itemText(item))
		return true
	})
}

func statusGlyph(s plan.Status) string {
	switch s {
	case plan.StatusCompleted:
		return color.GreenString("✓")
	case plan.StatusInProgress:
		return color.YellowString("●")
	case plan.StatusCancelled:
		return color.New(color.Faint).Sprint("✗")
	default:
		return "○"
	}
}

func priorityTag(p plan.Priority) string {
	switch p {
	case plan.PriorityHigh:
		return color.RedString("[HIGH]")
	case plan.PriorityLow:
		return color.BlueString("[LOW]")
	default:
		return color.New(color.Faint).Sprint("[MED]")
	}
}

func itemText(item *plan.Item) string {
	if item.Status == plan.StatusCancelled {
		return color.New(color.CrossedOut).Sprint(item.Content)
	}
	return item.Content
}
