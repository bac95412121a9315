package notifier

import "context"

// RosterNotifier pushes a message to every connected dashboard.
// The WebSocket hub is the production implementation.
type RosterNotifier interface {
	Broadcast(ctx context.Context, msg any)
}
