package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/mattsolo1/grove-core/cli"
	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-planshare/pkg/plan"
)

var pullOpen bool

func NewPullCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pull [chat-id]",
		Short: "Print the current plan from a chat with any feedback",
		Long: `Fetch the newest plan document from a chat, including edits made by
humans, and print it with the replies posted after it. Without a chat id the
most recently shared plan for the project is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runPull,
	}
	cmd.Flags().BoolVar(&pullOpen, "open", false, "Open the chat in the browser")
	return cmd
}

func runPull(cmd *cobra.Command, args []string) error {
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

	if pullOpen {
		if err := newOpener().Open(pulled.URL); err != nil {
			return err
		}
	}

	out := colorWriter(cmd)
	if cli.GetOptions(cmd).JSONOutput {
		feedback := make([]map[string]any, 0, len(pulled.Feedback))
		for _, msg := range pulled.Feedback {
			feedback = append(feedback, map[string]any{
				"author":     msg.Author,
				"content":    msg.Content,
				"created_at": msg.CreatedAt,
			})
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"chat_id":  pulled.ChatID,
			"url":      pulled.URL,
			"plan":     pulled.Plan,
			"feedback": feedback,
		})
	}

	fmt.Fprint(out, plan.Format(*pulled.Plan))
	if len(pulled.Feedback) > 0 {
		fmt.Fprintf(out, "\n%s\n", color.YellowString("Feedback (%d):", len(pulled.Feedback)))
		for _, msg := range pulled.Feedback {
			author := msg.Author
			if author == "" {
				author = msg.Role
			}
			fmt.Fprintf(out, "  %s: %s\n", color.CyanString(author), msg.Content)
		}
	}
	return nil
}
