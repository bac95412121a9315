package mcp_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	domainagent "github.com/alanyang/agent-queue/internal/domain/agent"
	domainqueue "github.com/alanyang/agent-queue/internal/domain/queue"
	mcptransport "github.com/alanyang/agent-queue/internal/transport/mcp"
)

// ── Registry unit tests ───────────────────────────────────────────────────────

func TestRegistry_RegisterUnregister(t *testing.T) {
	reg := mcptransport.NewSessionRegistry()

	reg.Register("session-1")
	assert.True(t, reg.IsConnected("session-1"), "session should be connected after register")

	assert.True(t, reg.Unregister("session-1"), "unregister should succeed")
	assert.False(t, reg.IsConnected("session-1"))
}

func TestRegistry_UnregisterNonExistentSession(t *testing.T) {
	reg := mcptransport.NewSessionRegistry()
	assert.False(t, reg.Unregister("does-not-exist"))
}

func TestRegistry_BroadcastWithoutServerIsNoOp(t *testing.T) {
	reg := mcptransport.NewSessionRegistry()
	reg.Register("session-1")
	assert.NotPanics(t, func() {
		reg.Broadcast(context.Background(), map[string]string{"type": "roster"})
	})
}

// ── Briefing ──────────────────────────────────────────────────────────────────

func TestBriefing(t *testing.T) {
	client := "Roberto"
	p := domainqueue.Partitions{
		Queued: []domainagent.Agent{{ID: 2, Name: "Bruno", Available: true, QueuePosition: 1}},
		Busy:   []domainagent.Agent{{ID: 1, Name: "Ana", InSession: true, ClientName: &client}},
		Paused: []domainagent.Agent{},
	}

	got := mcptransport.Briefing(p)
	assert.Contains(t, got, "Waiting: 1. In session: 1. Paused: 0.")
	assert.Contains(t, got, "1. Bruno (id 2)")
	assert.Contains(t, got, "In session: Ana (id 1) with Roberto")
}

func TestBriefing_EmptyQueue(t *testing.T) {
	got := mcptransport.Briefing(domainqueue.Partitions{})
	assert.Contains(t, got, "Nobody is in line")
}
