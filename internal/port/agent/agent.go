package agent

import (
	"context"

	domainagent "github.com/alanyang/agent-queue/internal/domain/agent"
)

// Store persists the agent roster. Implementations translate driver failures
// into domainagent.ErrStoreUnavailable and missing rows into
// domainagent.ErrNotFound.
type Store interface {
	FetchAll(ctx context.Context) ([]domainagent.Agent, error)

	// Insert ignores a.ID and returns the record with its assigned id.
	Insert(ctx context.Context, a domainagent.Agent) (domainagent.Agent, error)

	// Update writes every mutable column of a, keyed by a.ID.
	Update(ctx context.Context, a domainagent.Agent) error

	// UpsertMany writes all records in one round-trip, conflict key id.
	UpsertMany(ctx context.Context, agents []domainagent.Agent) error

	Remove(ctx context.Context, id int64) error
}
