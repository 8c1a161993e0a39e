// Package migrations embeds the kv_items schema for every SQL store driver.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog/log"
)

//go:embed sqlite/*.sql mysql/*.sql postgres/*.sql
var files embed.FS

// Dialects with an embedded schema.
const (
	SQLite   = "sqlite"
	MySQL    = "mysql"
	Postgres = "postgres"
)

// DatabaseURL turns a driver DSN into the URL form migrate expects.
func DatabaseURL(dialect, dsn string) (string, error) {
	switch dialect {
	case SQLite:
		return "sqlite://" + dsn, nil
	case MySQL:
		return "mysql://" + dsn, nil
	case Postgres:
		return dsn, nil
	default:
		return "", fmt.Errorf("no migrations for dialect %q", dialect)
	}
}

// Source returns the embedded migration files of dialect.
func Source(dialect string) (fs.FS, error) {
	sub, err := fs.Sub(files, dialect)
	if err != nil {
		return nil, fmt.Errorf("no migrations for dialect %q: %w", dialect, err)
	}
	return sub, nil
}

// Up applies every pending migration for dialect against dsn.
func Up(dialect, dsn string) error {
	m, err := newMigrate(dialect, dsn)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Debug().Str("dialect", dialect).Msg("database migration: no changes")
			return nil
		}
		return fmt.Errorf("failed to run migrate up: %w", err)
	}

	log.Info().Str("dialect", dialect).Msg("database migration: success")
	return nil
}

// Down rolls back the last applied migration.
func Down(dialect, dsn string) error {
	m, err := newMigrate(dialect, dsn)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Steps(-1); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("failed to run migrate down: %w", err)
	}
	return nil
}

// Version reports the applied schema version.
func Version(dialect, dsn string) (uint, bool, error) {
	m, err := newMigrate(dialect, dsn)
	if err != nil {
		return 0, false, err
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read migration version: %w", err)
	}
	return version, dirty, nil
}

func newMigrate(dialect, dsn string) (*migrate.Migrate, error) {
	sub, err := Source(dialect)
	if err != nil {
		return nil, err
	}
	src, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to open migration source: %w", err)
	}
	url, err := DatabaseURL(dialect, dsn)
	if err != nil {
		return nil, err
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}
