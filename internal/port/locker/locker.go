package locker

import "context"

// Locker serialises the roster read-modify-write across every process that
// shares the store. The Postgres implementation uses a session advisory lock,
// so lock and unlock must happen on the same connection.
type Locker interface {
	WithLock(ctx context.Context, key int64, fn func(ctx context.Context) error) error
}
