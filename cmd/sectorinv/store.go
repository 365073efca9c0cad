package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vbonduro/sectorinv/internal/config"
	"github.com/vbonduro/sectorinv/internal/db"
	"github.com/vbonduro/sectorinv/internal/kvstore"
	"github.com/vbonduro/sectorinv/internal/kvstore/local"
	"github.com/vbonduro/sectorinv/internal/kvstore/memory"
	rediskv "github.com/vbonduro/sectorinv/internal/kvstore/redis"
	"github.com/vbonduro/sectorinv/internal/kvstore/sqlkv"
)

// openStore builds the key-value backend named by cfg.StoreBackend. The
// returned func releases any connection it holds.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (kvstore.Store, func(), error) {
	noop := func() {}

	switch cfg.StoreBackend {
	case "memory":
		logger.Warn("using in-memory store, data will not survive a restart")
		return memory.New(), noop, nil

	case "local":
		store, err := local.NewLocalStore(cfg.StorePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using local file store", "path", cfg.StorePath)
		return store, noop, nil

	case "sqlite":
		database, err := db.Open(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using sqlite store", "path", cfg.DBPath)
		return sqlkv.NewKVStore(database, sqlkv.SQLite), closer(database.Close, "database", logger), nil

	case "mysql":
		database, err := db.OpenMySQL(cfg.MySQLDSN)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using mysql store")
		return sqlkv.NewKVStore(database, sqlkv.MySQL), closer(database.Close, "database", logger), nil

	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		logger.Info("using redis store", "addr", cfg.RedisAddr, "prefix", cfg.RedisPrefix)
		return rediskv.NewRedisStore(client, cfg.RedisPrefix), closer(client.Close, "redis", logger), nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func closer(closeFn func() error, name string, logger *slog.Logger) func() {
	return func() {
		if err := closeFn(); err != nil {
			logger.Error("failed to close "+name, "error", err)
		}
	}
}
