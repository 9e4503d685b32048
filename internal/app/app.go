// Package app assembles the engine and its infrastructure for the binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"

	"doc-approval-engine/internal/config"
	"doc-approval-engine/internal/events"
	"doc-approval-engine/internal/lifecycle"
	"doc-approval-engine/internal/lock"
	"doc-approval-engine/internal/storage"
	"doc-approval-engine/internal/telemetry"
	appTemporal "doc-approval-engine/internal/temporal"
	"doc-approval-engine/internal/templates"
)

type Runtime struct {
	Config    config.Config
	Logger    *slog.Logger
	Store     *storage.PostgresStore
	Bus       *events.Bus
	Temporal  client.Client
	Templates *templates.Store
	Engine    *lifecycle.Engine

	closers []func() error
}

// Open connects Postgres, the event bus, Temporal and the optional Redis
// lock, then builds the template store and engine on top of them.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger, consumerGroup string) (*Runtime, error) {
	rt := &Runtime{Config: cfg, Logger: logger}
	if err := rt.open(ctx, consumerGroup); err != nil {
		_ = rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) open(ctx context.Context, consumerGroup string) error {
	cfg := rt.Config

	tracer, shutdown, err := telemetry.NewTracer(ctx, cfg.ServiceName, cfg.OTelEnabled)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	rt.closers = append(rt.closers, func() error {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdown(sctx)
	})

	if cfg.RunMigrations {
		if err := storage.Migrate(cfg.PostgresDSN); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}
	store, err := storage.NewPostgresStore(cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	rt.Store = store
	rt.closers = append(rt.closers, store.Close)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}

	bus, err := events.Open(cfg.EventBus, cfg.KafkaBrokers, consumerGroup, rt.Logger)
	if err != nil {
		return fmt.Errorf("open event bus: %w", err)
	}
	rt.Bus = bus
	rt.closers = append(rt.closers, bus.Close)

	var locker lock.Locker = lock.NewKeyedMutex()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return fmt.Errorf("redis ping: %w", err)
		}
		rt.closers = append(rt.closers, rdb.Close)
		locker = lock.NewRedisLocker(rdb, lock.WithTTL(cfg.LockTTL), lock.WithLogger(rt.Logger))
	}

	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
		Logger:    tlog.NewStructuredLogger(rt.Logger),
	})
	if err != nil {
		return fmt.Errorf("connect temporal: %w", err)
	}
	rt.Temporal = temporalClient
	rt.closers = append(rt.closers, func() error { temporalClient.Close(); return nil })

	rt.Templates = templates.NewStore(store, templates.WithLogger(rt.Logger.With("module", "templates")))
	if cfg.TemplatesDir != "" {
		n, err := templates.Seed(ctx, rt.Templates, cfg.TemplatesDir)
		if err != nil {
			return fmt.Errorf("seed templates: %w", err)
		}
		rt.Logger.Info("templates seeded", "dir", cfg.TemplatesDir, "count", n)
	}

	scheduler := appTemporal.NewEscalationScheduler(temporalClient, cfg.TemporalTaskQueue, cfg.EscalationWorkflowPrefix, rt.Logger)
	rt.Engine = lifecycle.New(store,
		lifecycle.WithTemplates(rt.Templates),
		lifecycle.WithLocker(locker),
		lifecycle.WithPublisher(bus),
		lifecycle.WithScheduler(scheduler),
		lifecycle.WithTracer(tracer),
		lifecycle.WithLogger(rt.Logger.With("module", "lifecycle")),
	)
	return nil
}

// Close releases resources in reverse order of acquisition.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
