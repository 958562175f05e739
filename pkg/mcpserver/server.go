// Package mcpserver exposes plan sharing as MCP tools over stdio so coding
// agents can publish and read back their plans.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	grovelogging "github.com/mattsolo1/grove-core/logging"
	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-planshare/pkg/plan"
	"github.com/mattsolo1/grove-planshare/pkg/planshare"
)

const serverName = "grove-planshare"

var (
	statusValues   = []string{string(plan.StatusPending), string(plan.StatusInProgress), string(plan.StatusCompleted), string(plan.StatusCancelled)}
	priorityValues = []string{string(plan.PriorityHigh), string(plan.PriorityMedium), string(plan.PriorityLow)}
)

// Config holds configuration for the MCP server.
type Config struct {
	Version string
	// ProjectDir is used by tools when the caller does not pass project_dir.
	ProjectDir string
	Logger     *logrus.Entry
}

// Server dispatches MCP tool calls to the sharing service.
type Server struct {
	svc        *planshare.Service
	projectDir string
	logger     *logrus.Entry
	mcp        *server.MCPServer
}

type tool struct {
	def     mcp.Tool
	handler server.ToolHandlerFunc
}

// New creates the MCP server with every tool registered.
func New(svc *planshare.Service, cfg Config) *Server {
	s := &Server{
		svc:        svc,
		projectDir: cfg.ProjectDir,
		logger:     cfg.Logger,
	}
	if s.logger == nil {
		s.logger = grovelogging.NewLogger("planshare.mcp")
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	s.mcp = server.NewMCPServer(
		serverName,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)
	for _, t := range s.tools() {
		s.mcp.AddTool(t.def, t.handler)
	}
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// ServeStdio serves MCP over stdin/stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	s.logger.Info("Serving MCP over stdio")
	return server.ServeStdio(s.mcp)
}

func (s *Server) tools() []tool {
	return []tool{
		{
			def: mcp.NewTool("share_plan",
				mcp.WithDescription("Publish a plan to the shared chat. Updates the tracked plan with the same title in place unless new is set."),
				mcp.WithString("title", mcp.Required(), mcp.Description("Plan title")),
				mcp.WithString("description", mcp.Description("Optional overview paragraph")),
				mcp.WithArray("items", mcp.Required(), mcp.Description("Plan items; each may hold nested children"), mcp.Items(itemSchema())),
				mcp.WithString("project_dir", mcp.Description("Project directory the plan belongs to")),
				mcp.WithString("chat_id", mcp.Description("Update the plan in this chat")),
				mcp.WithString("session_id", mcp.Description("Agent session that produced the plan")),
				mcp.WithBoolean("new", mcp.Description("Always create a new chat")),
			),
			handler: s.handleSharePlan,
		},
		{
			def: mcp.NewTool("get_plan",
				mcp.WithDescription("Read the current plan from a chat, including human edits and feedback replies."),
				mcp.WithString("chat_id", mcp.Description("Chat to read; defaults to the latest plan for the project")),
				mcp.WithString("project_dir", mcp.Description("Project directory used when chat_id is empty")),
			),
			handler: s.handleGetPlan,
		},
		{
			def: mcp.NewTool("list_plans",
				mcp.WithDescription("List tracked plans, most recent first."),
				mcp.WithString("project_dir", mcp.Description("Only list plans for this project")),
			),
			handler: s.handleListPlans,
		},
		{
			def: mcp.NewTool("set_task_status",
				mcp.WithDescription("Change the status of one task in a shared plan."),
				mcp.WithString("chat_id", mcp.Required(), mcp.Description("Chat holding the plan")),
				mcp.WithString("path", mcp.Required(), mcp.Description("1-based dotted task path, e.g. 2.1")),
				mcp.WithString("status", mcp.Required(), mcp.Enum(statusValues...)),
			),
			handler: s.handleSetTaskStatus,
		},
		{
			def: mcp.NewTool("link_project",
				mcp.WithDescription("Link a project directory to an existing chat folder."),
				mcp.WithString("folder_id", mcp.Required(), mcp.Description("Backend folder id")),
				mcp.WithString("project_dir", mcp.Description("Project directory")),
			),
			handler: s.handleLinkProject,
		},
		{
			def: mcp.NewTool("remember",
				mcp.WithDescription("Store a note that should inform future plans for the project."),
				mcp.WithString("content", mcp.Required(), mcp.Description("Note text")),
				mcp.WithString("project_dir", mcp.Description("Project directory")),
			),
			handler: s.handleRemember,
		},
		{
			def: mcp.NewTool("list_memories",
				mcp.WithDescription("List the notes stored for the project."),
				mcp.WithString("project_dir", mcp.Description("Project directory")),
			),
			handler: s.handleListMemories,
		},
		{
			def: mcp.NewTool("schedule_review",
				mcp.WithDescription("Schedule a recurring review reminder in a plan's chat."),
				mcp.WithString("chat_id", mcp.Required(), mcp.Description("Chat holding the plan")),
				mcp.WithString("schedule", mcp.Required(), mcp.Description("Cron expression, e.g. 0 9 * * 1")),
			),
			handler: s.handleScheduleReview,
		},
		{
			def: mcp.NewTool("render_plan",
				mcp.WithDescription("Render a plan as the shared markdown document without publishing it."),
				mcp.WithString("title", mcp.Required(), mcp.Description("Plan title")),
				mcp.WithString("description", mcp.Description("Optional overview paragraph")),
				mcp.WithArray("items", mcp.Required(), mcp.Description("Plan items"), mcp.Items(itemSchema())),
			),
			handler: s.handleRenderPlan,
		},
	}
}

func itemSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"content":  map[string]any{"type": "string"},
			"status":   map[string]any{"type": "string", "enum": statusValues},
			"priority": map[string]any{"type": "string", "enum": priorityValues},
			"children": map[string]any{"type": "array", "items": map[string]any{"type": "object"}},
		},
		"required": []string{"content"},
	}
}

func (s *Server) handleSharePlan(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := planFromArguments(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := s.svc.Share(ctx, planshare.ShareRequest{
		Plan:       *p,
		ProjectDir: s.project(request),
		SessionID:  request.GetString("session_id", ""),
		ChatID:     request.GetString("chat_id", ""),
		New:        request.GetBool("new", false),
	})
	if err != nil {
		return s.toolError("share_plan", err), nil
	}

	return jsonResult(map[string]any{
		"chat_id":    res.ChatID,
		"message_id": res.MessageID,
		"url":        res.URL,
		"created":    res.Created,
		"items":      res.Plan.Total(),
	})
}

func (s *Server) handleGetPlan(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pulled, err := s.svc.Pull(ctx, request.GetString("chat_id", ""), s.project(request))
	if err != nil {
		return s.toolError("get_plan", err), nil
	}

	feedback := make([]map[string]string, 0, len(pulled.Feedback))
	for _, msg := range pulled.Feedback {
		feedback = append(feedback, map[string]string{
			"author":  msg.Author,
			"content": msg.Content,
		})
	}
	return jsonResult(map[string]any{
		"chat_id":  pulled.ChatID,
		"url":      pulled.URL,
		"plan":     pulled.Plan,
		"feedback": feedback,
	})
}

func (s *Server) handleListPlans(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	plans, err := s.svc.List(request.GetString("project_dir", ""))
	if err != nil {
		return s.toolError("list_plans", err), nil
	}
	return jsonResult(plans)
}

func (s *Server) handleSetTaskStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chatID, err := request.RequireString("chat_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawPath, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawStatus, err := request.RequireString("status")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	path, err := planshare.ParsePath(rawPath)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	status, err := plan.ParseStatus(rawStatus)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := s.svc.SetItemStatus(ctx, chatID, path, status)
	if err != nil {
		return s.toolError("set_task_status", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Task %s is now %s in %s", rawPath, status, res.URL)), nil
}

func (s *Server) handleLinkProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folderID, err := request.RequireString("folder_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	projectDir := s.project(request)
	if projectDir == "" {
		return mcp.NewToolResultError("project_dir is required"), nil
	}
	if err := s.svc.LinkProject(ctx, projectDir, folderID); err != nil {
		return s.toolError("link_project", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Linked %s to folder %s", projectDir, folderID)), nil
}

func (s *Server) handleRemember(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := request.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	memory, err := s.svc.Remember(ctx, s.project(request), content)
	if err != nil {
		return s.toolError("remember", err), nil
	}
	return jsonResult(memory)
}

func (s *Server) handleListMemories(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	memories, err := s.svc.Memories(ctx, s.project(request))
	if err != nil {
		return s.toolError("list_memories", err), nil
	}
	return jsonResult(memories)
}

func (s *Server) handleScheduleReview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	chatID, err := request.RequireString("chat_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	schedule, err := request.RequireString("schedule")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	automation, err := s.svc.ScheduleReview(ctx, chatID, schedule)
	if err != nil {
		return s.toolError("schedule_review", err), nil
	}
	return jsonResult(automation)
}

func (s *Server) handleRenderPlan(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := planFromArguments(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p.Metadata.Source = planshare.DefaultSource
	return mcp.NewToolResultText(plan.Format(*p)), nil
}

// planFromArguments decodes title, description and items from the call
// arguments using the plan's JSON form.
func planFromArguments(request mcp.CallToolRequest) (*plan.Plan, error) {
	args := request.GetArguments()
	if title, _ := args["title"].(string); title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if _, ok := args["items"].([]any); !ok {
		return nil, fmt.Errorf("items must be an array")
	}

	data, err := json.Marshal(map[string]any{
		"title":       args["title"],
		"description": args["description"],
		"items":       args["items"],
	})
	if err != nil {
		return nil, fmt.Errorf("encode arguments: %w", err)
	}
	return plan.DecodeJSON(data)
}

func (s *Server) project(request mcp.CallToolRequest) string {
	return request.GetString("project_dir", s.projectDir)
}

func (s *Server) toolError(name string, err error) *mcp.CallToolResult {
	s.logger.WithField("tool", name).WithError(err).Warn("Tool call failed")
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

const instructions = `grove-planshare publishes implementation plans to a shared chat where humans can read, tick and edit them.

Call share_plan whenever your plan changes. Call get_plan before continuing work to pick up edits and feedback from the humans in the chat. Use set_task_status to tick off tasks as you finish them.`
