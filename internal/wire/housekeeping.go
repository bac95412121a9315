package wire

import (
	"context"
	"log/slog"
	"time"

	domainqueue "github.com/alanyang/agent-queue/internal/domain/queue"
)

type refresher interface {
	Refresh(ctx context.Context) (domainqueue.Partitions, error)
}

type sweeper interface {
	Sweep() int
}

// runHousekeeping refetches the roster and drops expired idempotency entries
// every interval until ctx ends. The refetch heals changes the feed missed
// while its LISTEN connection was being replaced.
func runHousekeeping(ctx context.Context, interval time.Duration, r refresher, s sweeper) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				slog.Debug("housekeeping: swept idempotency cache", "expired", n)
			}
			if _, err := r.Refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("housekeeping: roster refresh failed", "error", err)
			}
		}
	}
}
