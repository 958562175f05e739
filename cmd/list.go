package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/mattsolo1/grove-core/cli"
	"github.com/spf13/cobra"
)

var listAll bool

func NewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List shared plans for the project",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}
	cmd.Flags().BoolVarP(&listAll, "all", "a", false, "List plans for every project")
	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadPlanshareConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	var projectDir string
	if !listAll {
		projectDir, err = resolveProject()
		if err != nil {
			return err
		}
	}
	plans, err := store.List(projectDir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if cli.GetOptions(cmd).JSONOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(plans)
	}

	if len(plans) == 0 {
		fmt.Fprintln(out, "No plans found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "CHAT\tTITLE\tUPDATED\tURL")
	for _, p := range plans {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ChatID, p.Title, p.UpdatedAt.Local().Format(time.DateTime), p.URL)
	}
	return w.Flush()
}
