package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/aretw0/concierge"
	"github.com/aretw0/concierge/internal/adapters/file"
	"github.com/aretw0/concierge/internal/config"
	"github.com/aretw0/concierge/pkg/adapters/emitter"
	"github.com/aretw0/concierge/pkg/adapters/memory"
	"github.com/aretw0/concierge/pkg/adapters/postgres"
	"github.com/aretw0/concierge/pkg/adapters/redis"
	"github.com/aretw0/concierge/pkg/observability"
	"github.com/aretw0/concierge/pkg/persistence/middleware"
	"github.com/aretw0/concierge/pkg/ports"
	"github.com/aretw0/concierge/pkg/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// app is a fully wired engine plus everything that must be closed with it.
type app struct {
	engine   *concierge.Engine
	store    ports.SessionStore
	registry *prometheus.Registry
	emitter  *emitter.Async
	closers  []func() error
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// newApp wires the engine from cfg. Extra options are applied last.
func newApp(ctx context.Context, cfg *config.Config, extra ...concierge.Option) (*app, error) {
	a := &app{registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	repo, store, err := a.openStorage(ctx, cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	opts := []concierge.Option{
		concierge.WithRepository(repo),
		concierge.WithLogger(logger),
		concierge.WithCacheSize(cfg.CacheSize),
		concierge.WithLifecycleHooks(observability.LoggingHooks(logger)),
		concierge.WithMetrics(observability.NewMetrics(a.registry)),
	}

	var publisher *emitter.Publisher
	if cfg.Redis.Enabled() {
		rs := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redis.WithTTL(cfg.SessionTTL),
			redis.WithPrefix(cfg.Redis.Prefix+"session:"),
		)
		a.closers = append(a.closers, rs.Close)
		if err := rs.Client().Ping(ctx).Err(); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("redis unreachable at %s: %w", cfg.Redis.Addr, err)
		}
		store = rs
		publisher = emitter.NewPublisher(rs.Client(), cfg.Redis.Prefix+"effects:")
		opts = append(opts, concierge.WithLocker(redis.NewLocker(rs.Client(), cfg.Redis.Prefix+"lock:"), cfg.LockTTL))
	}

	var mws []middleware.Middleware
	if len(cfg.PIIPatterns) > 0 {
		mws = append(mws, middleware.NewPIIMiddleware(cfg.PIIPatterns))
	}
	if len(cfg.EncryptionKey) > 0 {
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: cfg.EncryptionKey}))
	}
	a.store = middleware.Chain(store, mws...)
	opts = append(opts, concierge.WithSessionStore(a.store))

	a.emitter = emitter.NewAsync(newDispatcher(publisher),
		emitter.WithWorkers(cfg.EmitterWorkers),
		emitter.WithQueueSize(cfg.EmitterQueueSize),
		emitter.WithLogger(logger),
	)
	if err := a.emitter.Start(); err != nil {
		_ = a.Close()
		return nil, err
	}
	a.closers = append(a.closers, a.emitter.Close)
	opts = append(opts, concierge.WithEmitter(a.emitter))

	a.engine, err = concierge.New(append(opts, extra...)...)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) openStorage(ctx context.Context, cfg *config.Config) (ports.ScenarioRepository, ports.SessionStore, error) {
	switch cfg.Storage {
	case config.StorageFile:
		return file.NewRepository(filepath.Join(cfg.DataDir, "scenarios")),
			file.New(filepath.Join(cfg.DataDir, "sessions")), nil
	case config.StoragePostgres:
		repo, pool, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		if err := repo.Migrate(ctx); err != nil {
			return nil, nil, fmt.Errorf("postgres migration failed: %w", err)
		}
		// Scenarios live in Postgres; sessions stay on disk unless Redis is configured.
		return repo, file.New(filepath.Join(cfg.DataDir, "sessions")), nil
	case config.StorageMemory:
		return memory.NewRepository(), memory.NewStore(), nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
}

// newDispatcher routes every side effect to the log, and to Redis pub/sub
// when a publisher is configured.
func newDispatcher(publisher *emitter.Publisher) *registry.Registry {
	reg := registry.NewRegistry()
	logged := emitter.Log{Logger: logger}
	if publisher == nil {
		reg.Fallback(logged.Handle)
		return reg
	}
	reg.Fallback(func(ctx context.Context, kind string, payload map[string]any) error {
		_ = logged.Handle(ctx, kind, payload)
		return publisher.Handle(ctx, kind, payload)
	})
	return reg
}
