package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	portnotifier "github.com/alanyang/agent-queue/internal/port/notifier"
)

var _ portnotifier.RosterNotifier = (*SessionRegistry)(nil)

// SessionRegistry tracks connected MCP operator sessions and forwards roster
// messages to them as notifications/message.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]time.Time // sessionID → opened at

	// mcpSrv is set after the MCP server is constructed.
	mcpMu  sync.RWMutex
	mcpSrv *mcpserver.MCPServer
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]time.Time)}
}

func (r *SessionRegistry) SetMCPServer(s *mcpserver.MCPServer) {
	r.mcpMu.Lock()
	r.mcpSrv = s
	r.mcpMu.Unlock()
}

func (r *SessionRegistry) Register(sessionID string) {
	r.mu.Lock()
	r.sessions[sessionID] = time.Now()
	r.mu.Unlock()
}

// Unregister reports whether the session was known.
func (r *SessionRegistry) Unregister(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sessionID]; !ok {
		return false
	}
	delete(r.sessions, sessionID)
	return true
}

func (r *SessionRegistry) IsConnected(sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[sessionID]
	return ok
}

// Broadcast implements port/notifier.RosterNotifier.
func (r *SessionRegistry) Broadcast(ctx context.Context, msg any) {
	r.mcpMu.RLock()
	srv := r.mcpSrv
	r.mcpMu.RUnlock()
	if srv == nil {
		return
	}

	r.mu.RLock()
	targets := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		targets = append(targets, id)
	}
	r.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	params, err := toParams(msg)
	if err != nil {
		slog.ErrorContext(ctx, "mcp: serialize notification", "error", err)
		return
	}
	for _, id := range targets {
		if err := srv.SendNotificationToSpecificClient(id, "notifications/message", params); err != nil {
			slog.DebugContext(ctx, "mcp: notification not delivered", "session_id", id, "error", err)
		}
	}
}

func toParams(msg any) (map[string]any, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	var params map[string]any
	if err := json.Unmarshal(data, &params); err != nil {
		return map[string]any{"data": msg}, nil
	}
	return params, nil
}
