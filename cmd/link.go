package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var linkList bool

func NewLinkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link [folder-id]",
		Short: "Link the project to an existing chat folder",
		Long: `Link the project to an existing folder on the chat backend so its plans
and memories are filed there. Without a folder id, or with --list, the
available folders are printed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runLink,
	}
	cmd.Flags().BoolVarP(&linkList, "list", "l", false, "List available folders")
	return cmd
}

func runLink(cmd *cobra.Command, args []string) error {
	cfg, err := loadPlanshareConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	out := colorWriter(cmd)

	if linkList || len(args) == 0 {
		client, err := newClient(cfg)
		if err != nil {
			return err
		}
		folders, err := client.ListFolders(ctx)
		if err != nil {
			return err
		}
		if len(folders) == 0 {
			fmt.Fprintln(out, "No folders found.")
			return nil
		}
		w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME")
		for _, f := range folders {
			fmt.Fprintf(w, "%s\t%s\n", f.ID, f.Name)
		}
		return w.Flush()
	}

	svc, err := newService(cfg)
	if err != nil {
		return err
	}
	projectDir, err := resolveProject()
	if err != nil {
		return err
	}
	if err := svc.LinkProject(ctx, projectDir, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s Linked %s to folder %s\n", color.GreenString("✓"), projectDir, args[0])
	return nil
}
