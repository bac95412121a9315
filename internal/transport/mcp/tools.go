package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcpmcp "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	domainagent "github.com/alanyang/agent-queue/internal/domain/agent"
	domainqueue "github.com/alanyang/agent-queue/internal/domain/queue"
	queuesvc "github.com/alanyang/agent-queue/internal/service/queue"
)

// RegisterTools registers the operator tools on the server.
func RegisterTools(s *mcpserver.MCPServer, svc *queuesvc.Coordinator) {
	s.AddTool(mcpmcp.NewTool("list_queue",
		mcpmcp.WithDescription("Returns the roster split into queued (by position), busy (by session start) and paused agents."),
		mcpmcp.WithString("sort", mcpmcp.Description("One of: manual (default), name, status")),
		mcpmcp.WithBoolean("available_only", mcpmcp.Description("Hide paused agents")),
		mcpmcp.WithString("search", mcpmcp.Description("Case-insensitive match on name or contact number")),
	), listQueueHandler(svc))

	s.AddTool(mcpmcp.NewTool("call_next",
		mcpmcp.WithDescription("Dispatch the agent at the head of the queue to a client. A missing client contact is generated."),
		mcpmcp.WithString("client_name", mcpmcp.Required(), mcpmcp.Description("Client name")),
		mcpmcp.WithString("client_contact", mcpmcp.Description("Client phone number")),
	), callNextHandler(svc))

	s.AddTool(mcpmcp.NewTool("toggle_availability",
		mcpmcp.WithDescription("Pause a queued agent or put a paused agent back at the tail. With client_name, turning an agent off starts a session instead."),
		mcpmcp.WithNumber("agent_id", mcpmcp.Required(), mcpmcp.Description("Agent id")),
		mcpmcp.WithString("client_name", mcpmcp.Description("Client name, starts a session")),
		mcpmcp.WithString("client_contact", mcpmcp.Description("Client phone number")),
	), toggleHandler(svc))

	s.AddTool(mcpmcp.NewTool("finish_session",
		mcpmcp.WithDescription("End a busy agent's session; the agent rejoins the queue at the tail."),
		mcpmcp.WithNumber("agent_id", mcpmcp.Required(), mcpmcp.Description("Agent id")),
	), finishHandler(svc))

	s.AddTool(mcpmcp.NewTool("reorder_queue",
		mcpmcp.WithDescription("Move a queued agent to another queued agent's slot; everyone between shifts by one."),
		mcpmcp.WithNumber("active_id", mcpmcp.Required(), mcpmcp.Description("Agent being moved")),
		mcpmcp.WithNumber("over_id", mcpmcp.Required(), mcpmcp.Description("Agent whose slot it takes")),
	), reorderHandler(svc))
}

// ── Tool handlers ─────────────────────────────────────────────────────────

func listQueueHandler(svc *queuesvc.Coordinator) mcpserver.ToolHandlerFunc {
	return func(_ context.Context, req mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		opts := domainqueue.ViewOptions{
			Sort:          domainqueue.SortOption(mcpmcp.ParseString(req, "sort", string(domainqueue.SortManual))),
			AvailableOnly: mcpmcp.ParseBoolean(req, "available_only", false),
			Search:        mcpmcp.ParseString(req, "search", ""),
		}
		if !opts.Sort.Valid() {
			return mcpmcp.NewToolResultText("error: invalid sort, must be one of: manual, name, status"), nil
		}
		return jsonResult(svc.View(opts))
	}
}

func callNextHandler(svc *queuesvc.Coordinator) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		session := domainagent.SessionStart{
			ClientName:    mcpmcp.ParseString(req, "client_name", ""),
			ClientContact: mcpmcp.ParseString(req, "client_contact", ""),
		}
		return outcomeResult(svc.CallNext(ctx, session))
	}
}

func toggleHandler(svc *queuesvc.Coordinator) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		id := mcpmcp.ParseInt64(req, "agent_id", 0)
		if id <= 0 {
			return mcpmcp.NewToolResultText("error: invalid agent_id"), nil
		}
		var session *domainagent.SessionStart
		if name := mcpmcp.ParseString(req, "client_name", ""); name != "" {
			session = &domainagent.SessionStart{
				ClientName:    name,
				ClientContact: mcpmcp.ParseString(req, "client_contact", ""),
			}
		}
		return outcomeResult(svc.Toggle(ctx, id, session))
	}
}

func finishHandler(svc *queuesvc.Coordinator) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		id := mcpmcp.ParseInt64(req, "agent_id", 0)
		if id <= 0 {
			return mcpmcp.NewToolResultText("error: invalid agent_id"), nil
		}
		return outcomeResult(svc.Finish(ctx, id))
	}
}

func reorderHandler(svc *queuesvc.Coordinator) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
		activeID := mcpmcp.ParseInt64(req, "active_id", 0)
		overID := mcpmcp.ParseInt64(req, "over_id", 0)
		if activeID <= 0 || overID <= 0 {
			return mcpmcp.NewToolResultText("error: active_id and over_id are required"), nil
		}
		return outcomeResult(svc.Reorder(ctx, activeID, overID))
	}
}

// outcomeResult reports command failures as tool text, not protocol errors,
// so the operator model can read and react to them.
func outcomeResult(out queuesvc.Outcome, err error) (*mcpmcp.CallToolResult, error) {
	if err != nil {
		return mcpmcp.NewToolResultText(fmt.Sprintf("error: %s", err)), nil
	}
	return jsonResult(out)
}

func jsonResult(v any) (*mcpmcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return mcpmcp.NewToolResultText(string(data)), nil
}
