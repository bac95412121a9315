package wire

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	pgdb "github.com/alanyang/agent-queue/internal/adapter/postgres"
	pgagent "github.com/alanyang/agent-queue/internal/adapter/postgres/agent"
	pgeventbus "github.com/alanyang/agent-queue/internal/adapter/postgres/eventbus"
	pglocker "github.com/alanyang/agent-queue/internal/adapter/postgres/locker"

	"github.com/alanyang/agent-queue/internal/adapter/memory"
	sqlitestore "github.com/alanyang/agent-queue/internal/adapter/sqlite"

	"github.com/alanyang/agent-queue/internal/config"
	domainqueue "github.com/alanyang/agent-queue/internal/domain/queue"
	portagent "github.com/alanyang/agent-queue/internal/port/agent"
	porteventbus "github.com/alanyang/agent-queue/internal/port/eventbus"
	portlocker "github.com/alanyang/agent-queue/internal/port/locker"

	authsvc "github.com/alanyang/agent-queue/internal/service/auth"
	queuesvc "github.com/alanyang/agent-queue/internal/service/queue"

	"github.com/alanyang/agent-queue/internal/transport"
	mcptransport "github.com/alanyang/agent-queue/internal/transport/mcp"
	wshandler "github.com/alanyang/agent-queue/internal/transport/ws"
)

// App holds the top-level resources needed to run and gracefully stop the server.
type App struct {
	Server    *http.Server
	Queue     *queuesvc.Coordinator
	MCPServer *mcptransport.Server

	closers []func()
}

// Close releases the store and the change-feed subscription in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

type backend struct {
	store   portagent.Store
	feed    porteventbus.ChangeFeed
	locker  portlocker.Locker
	closers []func()
	// shared is true when other replicas may write the same store.
	shared  bool
}

// Build is the composition root: the only place concrete types are wired to their
// interface dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	// ── Store ────────────────────────────────────────────────────────────────
	var (
		be  backend
		err error
	)
	if cfg.UsePostgres() {
		be, err = postgresBackend(ctx, cfg)
	} else {
		be, err = sqliteBackend(cfg)
	}
	if err != nil {
		return nil, err
	}
	app := &App{closers: be.closers}

	// ── Notifiers ────────────────────────────────────────────────────────────
	hub := wshandler.NewHub(cfg.AllowedOrigins)
	reg := mcptransport.NewSessionRegistry()

	// ── Services ─────────────────────────────────────────────────────────────
	var opts []queuesvc.Option
	if be.shared {
		opts = append(opts, queuesvc.WithRefetch())
	}
	coord := queuesvc.NewCoordinator(be.store, be.locker, fanout{hub, reg}, opts...)
	hub.SetSnapshot(rosterGreeting(coord))

	if err := coord.Load(ctx); err != nil {
		app.Close()
		return nil, fmt.Errorf("loading roster: %w", err)
	}

	sub, err := be.feed.Subscribe(ctx, coord.HandleChange)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("subscribing to change feed: %w", err)
	}
	app.closers = append(app.closers, sub.Unsubscribe)

	auth := authsvc.NewService(cfg.JWTSecret, cfg.JWTTTL, cfg.Users, cfg.AdminEmails)
	if !auth.Enabled() {
		slog.Warn("JWT_SECRET not set, authentication disabled")
	}

	// ── Transport ────────────────────────────────────────────────────────────
	cache := memory.NewCache()
	mcpServer := mcptransport.New(reg, coord)

	router := transport.NewRouter(transport.RouterDeps{
		Queue:          coord,
		Auth:           auth,
		Hub:            hub,
		MCP:            mcpServer.Handler(),
		Cache:          cache,
		IdempotencyTTL: cfg.IdempotencyTTL,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	app.Server = &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}
	app.Queue = coord
	app.MCPServer = mcpServer

	// ── Housekeeping ─────────────────────────────────────────────────────────
	go runHousekeeping(ctx, cfg.ReconcileInterval, coord, cache)

	slog.Info("application wired", "port", cfg.Port, "postgres", cfg.UsePostgres(), "auth", auth.Enabled())
	return app, nil
}

// rosterGreeting greets a new dashboard under the coordinator mutex. The hub
// registers the client inside greet, so lock order stays coordinator then hub.
func rosterGreeting(coord *queuesvc.Coordinator) wshandler.SnapshotFunc {
	return func(greet func(msg any)) {
		coord.WithSnapshot(func(p domainqueue.Partitions) {
			greet(queuesvc.Message{Type: queuesvc.MessageRoster, Roster: &p})
		})
	}
}

func postgresBackend(ctx context.Context, cfg *config.Config) (backend, error) {
	pool, err := pgdb.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return backend{}, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pgdb.Migrate(ctx, pool); err != nil {
		pool.Close()
		return backend{}, fmt.Errorf("migrating database: %w", err)
	}
	return backend{
		store:   pgagent.New(pool),
		feed:    pgeventbus.New(pool),
		locker:  pglocker.New(pool),
		closers: []func(){pool.Close},
		shared:  true,
	}, nil
}

func sqliteBackend(cfg *config.Config) (backend, error) {
	db, err := sqlitestore.Open(cfg.SQLitePath)
	if err != nil {
		return backend{}, fmt.Errorf("opening sqlite store: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return backend{}, fmt.Errorf("opening sqlite store: %w", err)
	}
	feed := memory.NewFeed()
	slog.Info("DATABASE_URL not set, using sqlite store", "path", cfg.SQLitePath)
	return backend{
		store:  sqlitestore.New(db, feed),
		feed:   feed,
		locker: memory.NewLocker(),
		closers: []func(){func() {
			if err := sqlDB.Close(); err != nil {
				slog.Warn("closing sqlite store", "error", err)
			}
		}},
	}, nil
}
