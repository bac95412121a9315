package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyang/agent-queue/internal/domain/event"
	porteventbus "github.com/alanyang/agent-queue/internal/port/eventbus"
)

// Channel is the NOTIFY channel written by the atendentes_notify trigger.
const Channel = "agent_queue_atendentes"

const retryDelay = time.Second

var _ porteventbus.ChangeFeed = (*Feed)(nil)

// Feed implements port/eventbus.ChangeFeed over Postgres LISTEN/NOTIFY.
type Feed struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Feed {
	return &Feed{pool: pool}
}

// Subscribe holds one pooled connection in LISTEN and invokes handler for
// every notification until Unsubscribe is called or ctx ends. A dropped
// connection is replaced; notifications sent while it was down are lost, which
// the periodic roster refresh covers.
func (f *Feed) Subscribe(ctx context.Context, handler porteventbus.Handler) (porteventbus.Subscription, error) {
	conn, err := f.listen(ctx)
	if err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer func() {
			if conn != nil {
				conn.Exec(context.Background(), "UNLISTEN "+Channel) //nolint:errcheck
				conn.Release()
			}
			close(sub.done)
		}()

		for {
			if conn == nil {
				select {
				case <-subCtx.Done():
					return
				case <-time.After(retryDelay):
				}
				if conn, err = f.listen(subCtx); err != nil {
					slog.Warn("change feed: re-listen failed", "channel", Channel, "error", err)
					conn = nil
					continue
				}
				slog.Info("change feed: listening again", "channel", Channel)
			}

			notification, err := conn.Conn().WaitForNotification(subCtx)
			if err != nil {
				if subCtx.Err() != nil {
					return
				}
				slog.Warn("change feed: wait for notification failed", "channel", Channel, "error", err)
				if conn.Conn().IsClosed() {
					conn.Release()
					conn = nil
					continue
				}
				select {
				case <-subCtx.Done():
					return
				case <-time.After(retryDelay):
				}
				continue
			}

			c, err := Decode([]byte(notification.Payload))
			if err != nil {
				slog.Warn("change feed: dropping malformed payload", "channel", Channel, "error", err)
				continue
			}
			handler(subCtx, c)
		}
	}()

	return sub, nil
}

func (f *Feed) listen(ctx context.Context) (*pgxpool.Conn, error) {
	conn, err := f.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection for LISTEN: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("executing LISTEN on channel %s: %w", Channel, err)
	}
	return conn, nil
}

// Decode parses a trigger payload. The trigger does not mint ids, so one is
// assigned here.
func Decode(payload []byte) (event.Change, error) {
	var c event.Change
	if err := json.Unmarshal(payload, &c); err != nil {
		return event.Change{}, fmt.Errorf("unmarshaling change: %w", err)
	}
	switch c.Type {
	case event.TypeInsert, event.TypeUpdate:
		if c.Agent == nil {
			return event.Change{}, fmt.Errorf("%s change for agent %d has no row", c.Type, c.AgentID)
		}
	case event.TypeDelete:
	default:
		return event.Change{}, fmt.Errorf("unknown change type %q", c.Type)
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return c, nil
}

type subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *subscription) Unsubscribe() {
	s.cancel()
	<-s.done
}
