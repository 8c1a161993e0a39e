package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/tnt-ai/internal/config"
)

const (
	applicationName   = "tnt-ai"
	connectTimeout    = 10 * time.Second
	maxConnIdleTime   = 5 * time.Minute
	healthCheckPeriod = time.Minute
)

// DB holds the pgx pool behind the session KV table.
type DB struct {
	Pool *pgxpool.Pool
}

// NewDB opens a pool and waits for the first successful ping. The session
// store only ever touches one small table, so the pool is kept small and
// idle connections are released quickly.
func NewDB(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	poolCfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	poolCfg.ConnConfig.ConnectTimeout = connectTimeout
	poolCfg.MaxConnIdleTime = maxConnIdleTime
	poolCfg.HealthCheckPeriod = healthCheckPeriod
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 && cfg.MinConns <= poolCfg.MaxConns {
		poolCfg.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}

	db := &DB{Pool: pool}
	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres %s: %w", cfg.Host, err)
	}

	log.Debug().
		Str("host", cfg.Host).
		Str("database", cfg.Database).
		Int32("max_conns", poolCfg.MaxConns).
		Int32("min_conns", poolCfg.MinConns).
		Msg("postgres pool connected")

	return db, nil
}

func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

func (db *DB) Close() {
	if db.Pool == nil {
		return
	}
	stat := db.Pool.Stat()
	log.Debug().
		Int32("total_conns", stat.TotalConns()).
		Int64("acquire_count", stat.AcquireCount()).
		Msg("closing postgres pool")
	db.Pool.Close()
}
