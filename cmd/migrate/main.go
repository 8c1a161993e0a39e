package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/Rrens/tnt-ai/internal/config"
	"github.com/Rrens/tnt-ai/internal/repository/migrations"
)

const usage = "usage: migrate [up|down|version]"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	cfg, err := config.Load()
	if err != nil {
		fail("Failed to load config: %v", err)
	}

	dialect, dsn, err := target(cfg.Storage)
	if err != nil {
		fail("%v", err)
	}

	fmt.Printf("Migrating %s storage...\n", dialect)

	switch command {
	case "up":
		if err := migrations.Up(dialect, dsn); err != nil {
			fail("Migration failed: %v", err)
		}
		fmt.Println("Schema is up to date")
	case "down":
		if err := migrations.Down(dialect, dsn); err != nil {
			fail("Rollback failed: %v", err)
		}
		fmt.Println("Rolled back one migration")
	case "version":
		version, dirty, err := migrations.Version(dialect, dsn)
		if err != nil {
			fail("Failed to read version: %v", err)
		}
		fmt.Printf("version=%d dirty=%t\n", version, dirty)
	default:
		fail(usage)
	}
}

// target resolves the migrate dialect and DSN of the configured driver.
func target(cfg config.StorageConfig) (string, string, error) {
	switch cfg.Driver {
	case "sqlite":
		return migrations.SQLite, cfg.SQLite.Path, nil
	case "mysql":
		return migrations.MySQL, cfg.MySQL.DSN, nil
	case "postgres":
		return migrations.Postgres, cfg.Database.DSN(), nil
	default:
		return "", "", fmt.Errorf("storage driver %q has no schema to migrate", cfg.Driver)
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
