package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/alanyang/agent-queue/internal/domain/event"
	porteventbus "github.com/alanyang/agent-queue/internal/port/eventbus"
)

const feedBuffer = 256

var _ porteventbus.ChangeFeed = (*Feed)(nil)

// Feed is an in-process ChangeFeed. Publish never blocks: each subscriber has
// its own buffered queue drained by a goroutine, and a full queue drops the
// change with a warning.
type Feed struct {
	mu   sync.RWMutex
	subs map[*feedSub]struct{}
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[*feedSub]struct{})}
}

func (f *Feed) Publish(c event.Change) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for s := range f.subs {
		select {
		case s.ch <- c:
		default:
			slog.Warn("memory feed: subscriber queue full, dropping change", "agent_id", c.AgentID, "type", c.Type)
		}
	}
}

func (f *Feed) Subscribe(ctx context.Context, handler porteventbus.Handler) (porteventbus.Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	s := &feedSub{
		feed:   f,
		ch:     make(chan event.Change, feedBuffer),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	f.mu.Lock()
	f.subs[s] = struct{}{}
	f.mu.Unlock()

	go func() {
		defer close(s.done)
		defer f.remove(s)
		for {
			select {
			case <-subCtx.Done():
				return
			case c := <-s.ch:
				handler(subCtx, c)
			}
		}
	}()
	return s, nil
}

func (f *Feed) remove(s *feedSub) {
	f.mu.Lock()
	delete(f.subs, s)
	f.mu.Unlock()
}

type feedSub struct {
	feed   *Feed
	ch     chan event.Change
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *feedSub) Unsubscribe() {
	s.cancel()
	<-s.done
}
