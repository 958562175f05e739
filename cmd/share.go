package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/mattsolo1/grove-core/cli"
	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-planshare/pkg/planshare"
)

var (
	shareFile    string
	shareChatID  string
	shareSession string
	shareNew     bool
	shareOpen    bool
)

func NewShareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "share",
		Short: "Publish a plan to the shared chat",
		Long: `Publish a plan to the shared chat so humans can review and edit it.

The plan is read as JSON or as a plan document from --file, or stdin when
--file is "-" or omitted. A plan with the same title that was already shared
for the project is updated in place.

Examples:
  planshare share -f plan.json
  cat plan.md | planshare share --new`,
		Args: cobra.NoArgs,
		RunE: runShare,
	}
	cmd.Flags().StringVarP(&shareFile, "file", "f", "-", "Plan file (JSON or markdown), or - for stdin")
	cmd.Flags().StringVar(&shareChatID, "chat", "", "Update the plan in this chat")
	cmd.Flags().StringVar(&shareSession, "session", "", "Agent session id recorded in the plan")
	cmd.Flags().BoolVar(&shareNew, "new", false, "Always create a new chat")
	cmd.Flags().BoolVar(&shareOpen, "open", false, "Open the chat in the browser after sharing")
	return cmd
}

func runShare(cmd *cobra.Command, args []string) error {
	p, err := readPlanInput(shareFile, cmd.InOrStdin())
	if err != nil {
		return err
	}
	svc, _, err := loadService()
	if err != nil {
		return err
	}
	projectDir, err := resolveProject()
	if err != nil {
		return err
	}

	res, err := svc.Share(context.Background(), planshare.ShareRequest{
		Plan:       *p,
		ProjectDir: projectDir,
		SessionID:  shareSession,
		ChatID:     shareChatID,
		New:        shareNew,
	})
	if err != nil {
		return err
	}

	out := colorWriter(cmd)
	if cli.GetOptions(cmd).JSONOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"chat_id":    res.ChatID,
			"message_id": res.MessageID,
			"url":        res.URL,
			"created":    res.Created,
		})
	}

	verb := "Updated"
	if res.Created {
		verb = "Shared"
	}
	fmt.Fprintf(out, "%s %s plan %s (%d tasks)\n", color.GreenString("✓"), verb, color.CyanString(res.Plan.Title), res.Plan.Total())
	if res.URL != "" {
		fmt.Fprintf(out, "  %s\n", res.URL)
	}
	if shareOpen {
		return newOpener().Open(res.URL)
	}
	return nil
}
