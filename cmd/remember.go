package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/mattsolo1/grove-core/cli"
	"github.com/spf13/cobra"
)

var (
	rememberList   bool
	rememberForget string
)

func NewRememberCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remember [note...]",
		Short: "Store or list notes that inform the project's plans",
		Long: `Store a note in the project's chat folder. Notes are shared context for
everyone planning in the project. With --list the stored notes are printed,
with --forget a note is removed.`,
		RunE: runRemember,
	}
	cmd.Flags().BoolVarP(&rememberList, "list", "l", false, "List stored notes")
	cmd.Flags().StringVar(&rememberForget, "forget", "", "Remove the note with this id")
	return cmd
}

func runRemember(cmd *cobra.Command, args []string) error {
	svc, _, err := loadService()
	if err != nil {
		return err
	}
	ctx := context.Background()
	out := colorWriter(cmd)

	if rememberForget != "" {
		if err := svc.Forget(ctx, rememberForget); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s Removed note %s\n", color.GreenString("✓"), rememberForget)
		return nil
	}

	projectDir, err := resolveProject()
	if err != nil {
		return err
	}

	if rememberList || len(args) == 0 {
		memories, err := svc.Memories(ctx, projectDir)
		if err != nil {
			return err
		}
		if cli.GetOptions(cmd).JSONOutput {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(memories)
		}
		if len(memories) == 0 {
			fmt.Fprintln(out, "No notes stored.")
			return nil
		}
		w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tCREATED\tNOTE")
		for _, m := range memories {
			fmt.Fprintf(w, "%s\t%s\t%s\n", m.ID, m.CreatedAt.Local().Format(time.DateTime), m.Content)
		}
		return w.Flush()
	}

	memory, err := svc.Remember(ctx, projectDir, strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s Stored note %s\n", color.GreenString("✓"), memory.ID)
	return nil
}
