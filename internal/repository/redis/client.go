package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Rrens/tnt-ai/internal/config"
)

const (
	clientName   = "tnt-ai"
	dialTimeout  = 5 * time.Second
	ioTimeout    = 3 * time.Second
	pingDeadline = 5 * time.Second
)

// Client is a go-redis connection whose keys all live under one prefix, so
// sessions and rate-limit counters can share a database with other apps.
type Client struct {
	rdb    *redis.Client
	prefix string
}

// NewClient dials cfg and fails unless the server answers a PING.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		ClientName:   clientName,
		DialTimeout:  dialTimeout,
		ReadTimeout:  ioTimeout,
		WriteTimeout: ioTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingDeadline)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr(), err)
	}

	return Wrap(rdb, cfg.Prefix), nil
}

// Wrap uses an existing connection. Every key is namespaced with prefix.
func Wrap(rdb *redis.Client, prefix string) *Client {
	return &Client{rdb: rdb, prefix: prefix}
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) key(parts ...string) string {
	return c.prefix + strings.Join(parts, "")
}
