// Package sqlstore implements domain.KVStore on database/sql for SQLite and MySQL.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/Rrens/tnt-ai/internal/domain"
	"github.com/Rrens/tnt-ai/internal/repository/migrations"
)

// Store implements domain.KVStore over a kv_items table.
type Store struct {
	db      *sql.DB
	dialect string
	upsert  string
}

const (
	selectQuery = `SELECT item_value FROM kv_items WHERE item_key = ?`
	deleteQuery = `DELETE FROM kv_items WHERE item_key = ?`

	sqliteUpsert = `
		INSERT INTO kv_items (item_key, item_value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(item_key) DO UPDATE SET
			item_value = excluded.item_value,
			updated_at = excluded.updated_at`

	mysqlUpsert = `
		INSERT INTO kv_items (item_key, item_value, updated_at)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE
			item_value = VALUES(item_value),
			updated_at = VALUES(updated_at)`
)

// OpenSQLite opens (creating if needed) the database file at path and applies
// the schema.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database file path is required")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	if err := migrations.Up(migrations.SQLite, path); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)

	return newStore(ctx, db, migrations.SQLite, sqliteUpsert)
}

// OpenMySQL connects to dsn (go-sql-driver format) and applies the schema.
func OpenMySQL(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("mysql dsn is required")
	}

	if err := migrations.Up(migrations.MySQL, dsn); err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return newStore(ctx, db, migrations.MySQL, mysqlUpsert)
}

func newStore(ctx context.Context, db *sql.DB, dialect, upsert string) (*Store, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{db: db, dialect: dialect, upsert: upsert}, nil
}

// Dialect returns "sqlite" or "mysql".
func (s *Store) Dialect() string {
	return s.dialect
}

// GetItem implements domain.KVStore.
func (s *Store) GetItem(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, selectQuery, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get item: %w", err)
	}
	return value, nil
}

// SetItem implements domain.KVStore.
func (s *Store) SetItem(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, s.upsert, key, value, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to set item: %w", err)
	}
	return nil
}

// RemoveItem implements domain.KVStore.
func (s *Store) RemoveItem(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, deleteQuery, key); err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements domain.KVStore.
func (s *Store) Close() error {
	return s.db.Close()
}
