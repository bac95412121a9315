package wire

import (
	"context"

	portnotifier "github.com/alanyang/agent-queue/internal/port/notifier"
)

var _ portnotifier.RosterNotifier = fanout(nil)

// fanout delivers every roster message to each notifier in order.
type fanout []portnotifier.RosterNotifier

func (f fanout) Broadcast(ctx context.Context, msg any) {
	for _, n := range f {
		n.Broadcast(ctx, msg)
	}
}
