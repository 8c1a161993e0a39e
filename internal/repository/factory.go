// Package repository selects and opens the KV driver behind the session store.
package repository

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/tnt-ai/internal/config"
	"github.com/Rrens/tnt-ai/internal/domain"
	"github.com/Rrens/tnt-ai/internal/repository/memory"
	"github.com/Rrens/tnt-ai/internal/repository/migrations"
	"github.com/Rrens/tnt-ai/internal/repository/mongo"
	"github.com/Rrens/tnt-ai/internal/repository/postgres"
	"github.com/Rrens/tnt-ai/internal/repository/redis"
	"github.com/Rrens/tnt-ai/internal/repository/sqlstore"
)

// StoreType names a KV driver.
type StoreType string

const (
	StoreTypeMemory   StoreType = "memory"
	StoreTypeSQLite   StoreType = "sqlite"
	StoreTypeMySQL    StoreType = "mysql"
	StoreTypePostgres StoreType = "postgres"
	StoreTypeRedis    StoreType = "redis"
	StoreTypeMongo    StoreType = "mongo"
)

// NewKVStore opens the driver named by cfg.Driver. SQL drivers are migrated
// before use.
func NewKVStore(ctx context.Context, cfg config.StorageConfig) (domain.KVStore, error) {
	storeType := StoreType(cfg.Driver)
	logger := log.With().Str("driver", cfg.Driver).Logger()

	var (
		store domain.KVStore
		err   error
	)

	switch storeType {
	case StoreTypeMemory:
		store = memory.New()

	case StoreTypeSQLite:
		if cfg.SQLite.Path == "" {
			return nil, fmt.Errorf("%w: storage.sqlite.path is required", ErrInvalidConfig)
		}
		store, err = sqlstore.OpenSQLite(ctx, cfg.SQLite.Path)
		logger = logger.With().Str("path", cfg.SQLite.Path).Logger()

	case StoreTypeMySQL:
		if cfg.MySQL.DSN == "" {
			return nil, fmt.Errorf("%w: storage.mysql.dsn is required", ErrInvalidConfig)
		}
		store, err = sqlstore.OpenMySQL(ctx, cfg.MySQL.DSN)

	case StoreTypePostgres:
		if cfg.Database.Host == "" || cfg.Database.Database == "" {
			return nil, fmt.Errorf("%w: storage.database host and database are required", ErrInvalidConfig)
		}
		if err = migrations.Up(migrations.Postgres, cfg.Database.DSN()); err != nil {
			return nil, err
		}
		var db *postgres.DB
		db, err = postgres.NewDB(ctx, cfg.Database)
		if err == nil {
			store = postgres.NewKVStore(db)
		}
		logger = logger.With().Str("host", cfg.Database.Host).Logger()

	case StoreTypeRedis:
		var client *redis.Client
		client, err = redis.NewClient(ctx, cfg.Redis)
		if err == nil {
			store = redis.NewKVStore(client)
		}
		logger = logger.With().Str("addr", cfg.Redis.Addr()).Logger()

	case StoreTypeMongo:
		store, err = mongo.Connect(ctx, cfg.Mongo)

	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidStoreType, cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", storeType, err)
	}

	logger.Info().Msg("session storage ready")
	return store, nil
}
