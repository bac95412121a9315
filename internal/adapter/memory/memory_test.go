package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyang/agent-queue/internal/domain/agent"
	"github.com/alanyang/agent-queue/internal/domain/event"
)

func TestCache_TTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewCache()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	now = now.Add(2 * time.Minute)
	_, err = c.Get(ctx, "k")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, c.Set(ctx, "a", nil, time.Second))
	require.NoError(t, c.Set(ctx, "b", nil, time.Hour))
	now = now.Add(time.Minute)
	assert.Equal(t, 1, c.Sweep())

	require.NoError(t, c.Invalidate(ctx, "b"))
	_, err = c.Get(ctx, "b")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestFeed_FanOutAndUnsubscribe(t *testing.T) {
	f := NewFeed()
	ctx := context.Background()

	var (
		mu  sync.Mutex
		got []int64
		wg  sync.WaitGroup
	)
	wg.Add(2)
	handler := func(_ context.Context, c event.Change) {
		mu.Lock()
		got = append(got, c.AgentID)
		mu.Unlock()
		wg.Done()
	}
	s1, err := f.Subscribe(ctx, handler)
	require.NoError(t, err)
	s2, err := f.Subscribe(ctx, handler)
	require.NoError(t, err)

	f.Publish(event.NewUpsert(event.TypeInsert, agent.Agent{ID: 3}))
	wg.Wait()
	assert.Equal(t, []int64{3, 3}, got)

	s1.Unsubscribe()
	s2.Unsubscribe()

	f.mu.RLock()
	assert.Empty(t, f.subs)
	f.mu.RUnlock()
}

func TestLocker_Serialises(t *testing.T) {
	l := NewLocker()
	ctx := context.Background()

	var (
		inside int
		maxIn  int
		mu     sync.Mutex
		wg     sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.WithLock(ctx, 1, func(context.Context) error {
				mu.Lock()
				inside++
				if inside > maxIn {
					maxIn = inside
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxIn)
}

func TestLocker_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := NewLocker().WithLock(ctx, 1, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
