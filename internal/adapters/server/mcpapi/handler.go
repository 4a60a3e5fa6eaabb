// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/evanschultz/pitchside/internal/adapters/server/common"
	"github.com/evanschultz/pitchside/internal/domain"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter exposing the pipeline tools.
func NewHandler(cfg Config, pipeline common.PipelineService) (*Handler, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("pipeline service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerLeadTools(mcpSrv, pipeline)
	registerTaskTools(mcpSrv, pipeline)
	registerActivityTools(mcpSrv, pipeline)
	registerPipelineTools(mcpSrv, pipeline)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "pitchside"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = "/" + strings.Trim(strings.TrimSpace(cfg.EndpointPath), "/")
	if cfg.EndpointPath == "/" {
		cfg.EndpointPath = "/mcp"
	}
	return cfg
}

// registerLeadTools registers lead list/get/create/update/move tools.
func registerLeadTools(srv *mcpserver.MCPServer, pipeline common.PipelineService) {
	srv.AddTool(
		mcp.NewTool(
			"pitchside.list_leads",
			mcp.WithDescription("List leads newest-first with hot, overdue, and stage SLA flags."),
			mcp.WithString("search", mcp.Description("Case-insensitive name, phone, or email substring")),
			mcp.WithString("owner_id", mcp.Description("Only leads owned by this agent")),
			mcp.WithNumber("limit", mcp.Description("Maximum rows to return")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			leads, err := pipeline.ListLeads(ctx, common.ListLeadsRequest{
				Search:  req.GetString("search", ""),
				OwnerID: req.GetString("owner_id", ""),
				Limit:   req.GetInt("limit", 0),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_leads", map[string]any{"leads": leads})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"pitchside.get_lead",
			mcp.WithDescription("Return one lead by id."),
			mcp.WithString("lead_id", mcp.Required(), mcp.Description("Lead identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			leadID, err := req.RequireString("lead_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			lead, err := pipeline.GetLead(ctx, leadID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("get_lead", lead)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"pitchside.create_lead",
			mcp.WithDescription("Create one lead. Without owner_id the source assignment rule applies."),
			mcp.WithString("primary_name", mcp.Required(), mcp.Description("Contact name")),
			mcp.WithString("phone", mcp.Required(), mcp.Description("Contact phone")),
			mcp.WithString("email", mcp.Description("Contact email")),
			mcp.WithString("source_type", mcp.Description("Intake source"), mcp.Enum(sourceTypes()...)),
			mcp.WithString("stage", mcp.Description("Initial stage (defaults to the first configured stage)")),
			mcp.WithNumber("priority", mcp.Description("0 highest to 3 lowest")),
			mcp.WithString("owner_id", mcp.Description("Owning agent id")),
			mcp.WithArray("tags", mcp.Description("Optional tags"), mcp.WithStringItems()),
			mcp.WithString("actor_id", mcp.Description("Acting agent id for the timeline")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args common.CreateLeadRequest
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			lead, err := pipeline.CreateLead(ctx, args)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("create_lead", lead)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"pitchside.update_lead",
			mcp.WithDescription("Partially update a lead. Omitted fields are unchanged; each change is recorded on the timeline."),
			mcp.WithString("lead_id", mcp.Required(), mcp.Description("Lead identifier")),
			mcp.WithString("stage", mcp.Description("Configured stage id")),
			mcp.WithString("owner_id", mcp.Description("Owning agent id; empty string clears")),
			mcp.WithNumber("priority", mcp.Description("0 highest to 3 lowest")),
			mcp.WithArray("tags", mcp.Description("Replacement tag list"), mcp.WithStringItems()),
			mcp.WithString("actor_id", mcp.Description("Acting agent id for the timeline")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args common.UpdateLeadRequest
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			lead, err := pipeline.UpdateLead(ctx, args)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("update_lead", lead)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"pitchside.move_lead",
			mcp.WithDescription("Move a lead to another stage, optionally recording the planned next action."),
			mcp.WithString("lead_id", mcp.Required(), mcp.Description("Lead identifier")),
			mcp.WithString("stage", mcp.Required(), mcp.Description("Destination stage id")),
			mcp.WithObject("next_action",
				mcp.Description("Optional next action {type, scheduled_at RFC3339, notes}"),
				mcp.Properties(map[string]any{
					"type":         map[string]any{"type": "string", "enum": nextActionTypes()},
					"scheduled_at": map[string]any{"type": "string", "description": "RFC3339 timestamp"},
					"notes":        map[string]any{"type": "string"},
				}),
			),
			mcp.WithString("actor_id", mcp.Description("Acting agent id for the timeline")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args common.MoveLeadRequest
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			lead, err := pipeline.MoveLead(ctx, args)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("move_lead", lead)
		},
	)
}

// registerTaskTools registers follow-up task tools.
func registerTaskTools(srv *mcpserver.MCPServer, pipeline common.PipelineService) {
	srv.AddTool(
		mcp.NewTool(
			"pitchside.list_tasks",
			mcp.WithDescription("List tasks by due time, undated last. Omit lead_id to list every task."),
			mcp.WithString("lead_id", mcp.Description("Lead identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			tasks, err := pipeline.ListTasks(ctx, req.GetString("lead_id", ""))
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_tasks", map[string]any{"tasks": tasks})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"pitchside.create_task",
			mcp.WithDescription("Create one follow-up task for a lead."),
			mcp.WithString("lead_id", mcp.Required(), mcp.Description("Lead identifier")),
			mcp.WithString("title", mcp.Required(), mcp.Description("Task title")),
			mcp.WithString("due_at", mcp.Description("Optional RFC3339 timestamp")),
			mcp.WithString("actor_id", mcp.Description("Acting agent id for the timeline")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args common.CreateTaskRequest
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			task, err := pipeline.CreateTask(ctx, args)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("create_task", task)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"pitchside.update_task",
			mcp.WithDescription("Set a task status."),
			mcp.WithString("task_id", mcp.Required(), mcp.Description("Task identifier")),
			mcp.WithString("status", mcp.Required(), mcp.Description("Task status"), mcp.Enum(
				string(domain.TaskStatusOpen), string(domain.TaskStatusDone), string(domain.TaskStatusCancelled),
			)),
			mcp.WithString("actor_id", mcp.Description("Acting agent id for the timeline")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args common.UpdateTaskRequest
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			task, err := pipeline.UpdateTask(ctx, args)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("update_task", task)
		},
	)
}

// registerActivityTools registers timeline tools.
func registerActivityTools(srv *mcpserver.MCPServer, pipeline common.PipelineService) {
	srv.AddTool(
		mcp.NewTool(
			"pitchside.list_activities",
			mcp.WithDescription("List a lead timeline newest-first."),
			mcp.WithString("lead_id", mcp.Required(), mcp.Description("Lead identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			leadID, err := req.RequireString("lead_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			activities, err := pipeline.ListActivities(ctx, leadID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_activities", map[string]any{"activities": activities})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"pitchside.create_activity",
			mcp.WithDescription("Record a note or call on a lead timeline."),
			mcp.WithString("lead_id", mcp.Required(), mcp.Description("Lead identifier")),
			mcp.WithString("type", mcp.Required(), mcp.Description("Activity type"), mcp.Enum(
				string(domain.ActivityNote), string(domain.ActivityCall),
			)),
			mcp.WithString("title", mcp.Description("Short title")),
			mcp.WithString("body", mcp.Description("Markdown body")),
			mcp.WithString("actor_id", mcp.Description("Acting agent id for the timeline")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args common.CreateActivityRequest
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			activity, err := pipeline.CreateActivity(ctx, args)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("create_activity", activity)
		},
	)
}

// registerPipelineTools registers settings, users, and analytics tools.
func registerPipelineTools(srv *mcpserver.MCPServer, pipeline common.PipelineService) {
	srv.AddTool(
		mcp.NewTool(
			"pitchside.get_settings",
			mcp.WithDescription("Return configured stages, stage SLA hours, and assignment rules."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			settings, err := pipeline.GetSettings(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("get_settings", settings)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"pitchside.list_users",
			mcp.WithDescription("List agents sorted by name."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			users, err := pipeline.ListUsers(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_users", map[string]any{"users": users})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"pitchside.analytics",
			mcp.WithDescription("Return today and rolling 7-day pipeline counters, optionally for one agent."),
			mcp.WithString("agent_id", mcp.Description("Scope metrics to leads owned by this agent")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			stats, err := pipeline.Analytics(ctx, req.GetString("agent_id", ""))
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("analytics", stats)
		},
	)
}

// jsonResult encodes one tool payload.
func jsonResult(tool string, payload any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", tool, err)
	}
	return result, nil
}

// invalidRequestToolResult reports argument binding failures.
func invalidRequestToolResult(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError("invalid_request: " + err.Error())
}

// toolResultFromError maps service errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, common.ErrInvalidRequest):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, common.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	case errors.Is(err, common.ErrConflict):
		return mcp.NewToolResultError("stage_not_configured: " + err.Error())
	case errors.Is(err, common.ErrUnavailable):
		return mcp.NewToolResultError("service_unavailable: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}

func sourceTypes() []string {
	types := domain.SourceTypes()
	out := make([]string, 0, len(types))
	for _, kind := range types {
		out = append(out, string(kind))
	}
	return out
}

func nextActionTypes() []string {
	types := domain.NextActionTypes()
	out := make([]string, 0, len(types))
	for _, kind := range types {
		out = append(out, string(kind))
	}
	return out
}
