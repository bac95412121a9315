package event

import (
	"time"

	"github.com/google/uuid"

	domainagent "github.com/alanyang/agent-queue/internal/domain/agent"
)

type Type string

const (
	TypeInsert Type = "INSERT"
	TypeUpdate Type = "UPDATE"
	TypeDelete Type = "DELETE"
)

// Change is one row-level change on the agents table. Unlike command
// responses it carries the full record, so subscribers can merge it without a
// read-back. Agent is nil for deletes.
type Change struct {
	ID          uuid.UUID          `json:"id"`
	Type        Type               `json:"type"`
	AgentID     int64              `json:"agent_id"`
	Agent       *domainagent.Agent `json:"agent,omitempty"`
	CommittedAt time.Time          `json:"committed_at"`
}

func NewUpsert(t Type, a domainagent.Agent) Change {
	return Change{
		ID:          uuid.New(),
		Type:        t,
		AgentID:     a.ID,
		Agent:       &a,
		CommittedAt: time.Now().UTC(),
	}
}

func NewDelete(agentID int64) Change {
	return Change{
		ID:          uuid.New(),
		Type:        TypeDelete,
		AgentID:     agentID,
		CommittedAt: time.Now().UTC(),
	}
}
