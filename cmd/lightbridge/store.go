package main

import (
	"context"
	"fmt"

	"github.com/ychetra/demo-light/internal/device"
	"github.com/ychetra/demo-light/internal/infrastructure/config"
	"github.com/ychetra/demo-light/internal/infrastructure/database"
	"github.com/ychetra/demo-light/internal/infrastructure/logging"
	"github.com/ychetra/demo-light/internal/infrastructure/postgres"
	"github.com/ychetra/demo-light/internal/infrastructure/redis"
	"github.com/ychetra/demo-light/migrations"
)

// storeBundle is the opened state store plus what the rest of run needs
// to know about it.
type storeBundle struct {
	store   device.Store
	history device.HistoryReader // nil when the backend keeps no history
	check   func(context.Context) error
	db      *database.DB // set for the sqlite backend only
	close   func()
}

// openStore connects the backend selected by cfg.Store.Backend and applies
// its migrations.
func openStore(ctx context.Context, cfg *config.Config, log *logging.Logger) (*storeBundle, error) {
	switch cfg.Store.Backend {
	case config.StoreBackendSQLite:
		db, err := database.Open(cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx, migrations.SQLite); err != nil {
			db.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		log.Info("database connected", "path", db.Path())

		s := device.NewSQLiteStore(db)
		return &storeBundle{
			store:   s,
			history: s,
			check:   db.HealthCheck,
			db:      db,
			close: func() {
				log.Info("closing database")
				if err := db.Close(); err != nil {
					log.Error("error closing database", "error", err)
				}
			},
		}, nil

	case config.StoreBackendPostgres:
		pool, err := postgres.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, pool, migrations.Postgres, log); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info("postgres connected")

		s := device.NewPostgresStore(pool)
		return &storeBundle{
			store:   s,
			history: s,
			check:   postgres.Healthcheck(pool),
			close: func() {
				log.Info("closing postgres pool")
				pool.Close()
			},
		}, nil

	case config.StoreBackendRedis:
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		log.Info("redis connected", "key", cfg.Redis.Key)

		return &storeBundle{
			store: device.NewRedisStore(client, cfg.Redis.Key),
			check: redis.Healthcheck(client),
			close: func() {
				log.Info("closing redis client")
				if err := client.Close(); err != nil {
					log.Error("error closing redis", "error", err)
				}
			},
		}, nil

	case config.StoreBackendMemory:
		log.Warn("using in-memory store, state is lost on restart")
		s := device.NewMemoryStore()
		return &storeBundle{store: s, history: s, close: func() {}}, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
