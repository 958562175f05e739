package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/mattsolo1/grove-core/cli"
	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-planshare/pkg/plan"
	"github.com/mattsolo1/grove-planshare/pkg/watch"
)

var watchInterval time.Duration

func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [chat-id]",
		Short: "Follow a shared plan and print it whenever it changes",
		Long: `Poll a chat and print the plan each time a human edits it or replies.
Without a chat id the most recently shared plan for the project is watched.
Press Ctrl+C to stop.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runWatch,
	}
	cmd.Flags().DurationVar(&watchInterval, "interval", 0, "Poll interval (defaults to planshare.poll_interval)")
	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadPlanshareConfig()
	if err != nil {
		return err
	}
	interval := watchInterval
	if interval <= 0 {
		interval, err = cfg.pollInterval()
		if err != nil {
			return err
		}
	}

	chatID, err := watchTarget(cfg, args)
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := watch.New(client, watch.Config{Interval: interval})
	events, unsubscribe := w.Subscribe()
	defer unsubscribe()

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, chatID) }()

	jsonOutput := cli.GetOptions(cmd).JSONOutput
	out := colorWriter(cmd)
	fmt.Fprintf(cmd.ErrOrStderr(), "Watching chat %s every %s\n", chatID, interval)
	for {
		select {
		case ev := <-events:
			if err := printEvent(out, ev, jsonOutput); err != nil {
				return err
			}
		case err := <-done:
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func watchTarget(cfg *PlanshareConfig, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	store, err := openStore(cfg)
	if err != nil {
		return "", err
	}
	projectDir, err := resolveProject()
	if err != nil {
		return "", err
	}
	tracked, err := store.Latest(projectDir)
	if err != nil {
		return "", fmt.Errorf("no plan to watch: %w", err)
	}
	return tracked.ChatID, nil
}

func printEvent(w io.Writer, ev watch.Event, jsonOutput bool) error {
	if jsonOutput {
		return json.NewEncoder(w).Encode(map[string]any{
			"chat_id":    ev.ChatID,
			"message_id": ev.MessageID,
			"updated_at": ev.UpdatedAt,
			"plan":       ev.Plan,
			"feedback":   len(ev.Feedback),
		})
	}

	stamp := time.Now().Format(time.TimeOnly)
	if ev.Plan == nil {
		fmt.Fprintf(w, "[%s] %s\n", stamp, color.YellowString("No plan in chat %s", ev.ChatID))
		return nil
	}
	counts := ev.Plan.Counts()
	fmt.Fprintf(w, "[%s] %s %s\n", stamp, color.CyanString(ev.Plan.Title),
		fmt.Sprintf("%d/%d completed, %d feedback", counts[plan.StatusCompleted], ev.Plan.Total(), len(ev.Feedback)))
	renderTree(w, ev.Plan)
	return nil
}
