package eventbus

import (
	"context"

	"github.com/alanyang/agent-queue/internal/domain/event"
)

type Handler func(ctx context.Context, c event.Change)

type Subscription interface {
	Unsubscribe()
}

// ChangeFeed delivers row-level changes of the agent store. Handlers run on
// the feed's goroutine, any number of times, until unsubscribed.
type ChangeFeed interface {
	Subscribe(ctx context.Context, handler Handler) (Subscription, error)
}
