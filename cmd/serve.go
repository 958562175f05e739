package cmd

import (
	"github.com/mattsolo1/grove-core/version"
	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-planshare/pkg/mcpserver"
)

func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve plan sharing tools to agents over MCP (stdio)",
		Long: `Start an MCP server on stdin/stdout exposing share_plan, get_plan,
set_task_status and the other plan sharing tools to a coding agent.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	svc, _, err := loadService()
	if err != nil {
		return err
	}
	projectDir, err := resolveProject()
	if err != nil {
		return err
	}
	srv := mcpserver.New(svc, mcpserver.Config{
		Version:    version.GetInfo().Version,
		ProjectDir: projectDir,
	})
	return srv.ServeStdio()
}
