//go:build integration

package agent_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pgagent "github.com/alanyang/agent-queue/internal/adapter/postgres/agent"
	pgeventbus "github.com/alanyang/agent-queue/internal/adapter/postgres/eventbus"
	domainagent "github.com/alanyang/agent-queue/internal/domain/agent"
	"github.com/alanyang/agent-queue/internal/domain/event"
	"github.com/alanyang/agent-queue/internal/testutil"
)

func TestAgentRepo_CRUD(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	ctx := context.Background()
	repo := pgagent.New(pool)

	a, err := repo.Insert(ctx, domainagent.Agent{Name: "Ana", ContactNumber: "Ramal 101", Available: true, QueuePosition: 1})
	require.NoError(t, err)
	assert.NotZero(t, a.ID)

	b, err := repo.Insert(ctx, domainagent.Agent{Name: "Bruno", Available: true, QueuePosition: 2})
	require.NoError(t, err)

	client := "Roberto"
	started := time.Now().UTC().Truncate(time.Microsecond)
	a.Available = false
	a.InSession = true
	a.ClientName = &client
	a.QueuePosition = 0
	a.SessionStartedAt = &started
	require.NoError(t, repo.Update(ctx, a))

	b.QueuePosition = 1
	require.NoError(t, repo.UpsertMany(ctx, []domainagent.Agent{b}))

	all, err := repo.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all[0].InSession)
	require.NotNil(t, all[0].SessionStartedAt)
	assert.True(t, started.Equal(*all[0].SessionStartedAt))
	assert.Equal(t, 1, all[1].QueuePosition)

	require.NoError(t, repo.Remove(ctx, b.ID))
	err = repo.Remove(ctx, b.ID)
	assert.ErrorIs(t, err, domainagent.ErrNotFound)

	b.ID = 9999
	assert.ErrorIs(t, repo.Update(ctx, b), domainagent.ErrNotFound)
}

func TestAgentRepo_InsertValidation(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	ctx := context.Background()

	_, err := pool.Exec(ctx, "ALTER TABLE atendentes DROP CONSTRAINT IF EXISTS atendentes_nome_nonblank")
	require.NoError(t, err)
	_, err = pool.Exec(ctx, "ALTER TABLE atendentes ADD CONSTRAINT atendentes_nome_nonblank CHECK (nome <> '')")
	require.NoError(t, err)
	t.Cleanup(func() {
		pool.Exec(context.Background(), "ALTER TABLE atendentes DROP CONSTRAINT IF EXISTS atendentes_nome_nonblank") //nolint:errcheck
	})

	_, err = pgagent.New(pool).Insert(ctx, domainagent.Agent{Name: ""})
	require.Error(t, err)
	assert.True(t, domainagent.IsValidation(err))
}

func TestFeed_DeliversTriggerPayloads(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	changes := make(chan event.Change, 8)
	sub, err := pgeventbus.New(pool).Subscribe(ctx, func(_ context.Context, c event.Change) {
		changes <- c
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	repo := pgagent.New(pool)
	a, err := repo.Insert(ctx, domainagent.Agent{Name: "Carla", Available: true, QueuePosition: 1})
	require.NoError(t, err)
	require.NoError(t, repo.Remove(ctx, a.ID))

	for _, want := range []event.Type{event.TypeInsert, event.TypeDelete} {
		select {
		case c := <-changes:
			assert.Equal(t, want, c.Type)
			assert.Equal(t, a.ID, c.AgentID)
			if want == event.TypeInsert {
				require.NotNil(t, c.Agent)
				assert.Equal(t, "Carla", c.Agent.Name)
			}
		case <-ctx.Done():
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}
