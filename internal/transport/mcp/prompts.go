package mcp

import (
	"context"
	"fmt"
	"strings"

	mcpmcp "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	domainqueue "github.com/alanyang/agent-queue/internal/domain/queue"
	queuesvc "github.com/alanyang/agent-queue/internal/service/queue"
)

// RegisterPrompts registers the queue_briefing prompt.
func RegisterPrompts(s *mcpserver.MCPServer, svc *queuesvc.Coordinator) {
	s.AddPrompt(
		mcpmcp.NewPrompt("queue_briefing",
			mcpmcp.WithPromptDescription("Current state of the agent queue, for an operator starting a shift."),
		),
		briefingHandler(svc),
	)
}

func briefingHandler(svc *queuesvc.Coordinator) mcpserver.PromptHandlerFunc {
	return func(_ context.Context, _ mcpmcp.GetPromptRequest) (*mcpmcp.GetPromptResult, error) {
		return mcpmcp.NewGetPromptResult(
			"Agent queue briefing",
			[]mcpmcp.PromptMessage{
				mcpmcp.NewPromptMessage(
					mcpmcp.RoleUser,
					mcpmcp.TextContent{
						Type: "text",
						Text: Briefing(svc.Snapshot()),
					},
				),
			},
		), nil
	}
}

// Briefing renders the partitions as plain text.
func Briefing(p domainqueue.Partitions) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Waiting: %d. In session: %d. Paused: %d.\n", len(p.Queued), len(p.Busy), len(p.Paused))
	if len(p.Queued) == 0 {
		b.WriteString("Nobody is in line; call_next will fail until an agent becomes available.\n")
	} else {
		b.WriteString("Queue:\n")
		for _, a := range p.Queued {
			fmt.Fprintf(&b, "  %d. %s (id %d)\n", a.QueuePosition, a.Name, a.ID)
		}
	}
	for _, a := range p.Busy {
		client := ""
		if a.ClientName != nil {
			client = *a.ClientName
		}
		fmt.Fprintf(&b, "In session: %s (id %d) with %s\n", a.Name, a.ID, client)
	}
	return b.String()
}
