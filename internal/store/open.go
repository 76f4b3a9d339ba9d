package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/atmx/price-feed/internal/config"
)

// Open connects the configured backend, migrates its schema and wraps it
// with the Redis cache when one is configured. An empty driver returns a
// nil Store. The returned func releases every connection.
func Open(ctx context.Context, db config.DatabaseConfig, rc config.RedisConfig, logger *slog.Logger) (Store, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	var cleanup []func()
	closeAll := func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}

	var st Store
	switch db.Driver {
	case "":
		return nil, func() {}, nil

	case config.DriverPostgres:
		pool, err := NewPool(ctx, db.URL, db.MaxConns)
		if err != nil {
			return nil, nil, err
		}
		cleanup = append(cleanup, pool.Close)
		pg := NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		st = pg
		logger.Info("connected to PostgreSQL")

	case config.DriverMySQL:
		gdb, err := OpenMySQL(db.URL, db.MaxConns)
		if err != nil {
			return nil, nil, err
		}
		if sqlDB, err := gdb.DB(); err == nil {
			cleanup = append(cleanup, func() { sqlDB.Close() })
		}
		gs := NewGormStore(gdb)
		if err := gs.Migrate(ctx); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("migrate mysql: %w", err)
		}
		st = gs
		logger.Info("connected to MySQL")

	default:
		return nil, nil, fmt.Errorf("store: unknown driver %q", db.Driver)
	}

	if rc.URL != "" {
		opt, err := redis.ParseURL(rc.URL)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("invalid redis url: %w", err)
		}
		rdb := redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, cache reads will fall through", "err", err)
		}
		st = NewCachedStore(st, rdb, rc.TTL, logger)
		logger.Info("Redis cache enabled", "ttl", rc.TTL)
	}

	return st, closeAll, nil
}
