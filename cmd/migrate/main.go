package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"cardgate/internal/common/config"
	"cardgate/internal/common/logging"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

const usage = `Usage: migrate [-path dir] <command>
Commands:
  up       Apply all pending ledger migrations
  down     Roll back the last migration
  drop     Drop the ledger and idempotency tables (DANGEROUS)
  version  Show the current migration version
`

func main() {
	path := flag.String("path", "migrations", "directory holding the ledger migrations")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	// Migrations target DATABASE_URL whatever LEDGER_BACKEND the server runs with.
	m, err := migrate.New("file://"+*path, cfg.DatabaseURL)
	if err != nil {
		logging.Error("Failed to create migrator", "error", err, "path", *path)
		os.Exit(1)
	}
	defer m.Close()

	if err := run(m, flag.Arg(0)); err != nil {
		logging.Error("Migration command failed", "command", flag.Arg(0), "error", err)
		m.Close()
		os.Exit(1)
	}
}

func run(m *migrate.Migrate, command string) error {
	switch command {
	case "up":
		logging.Info("Applying ledger migrations")
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
		logging.Info("Migrations applied successfully")

	case "down":
		logging.Info("Rolling back last migration")
		if err := m.Steps(-1); err != nil {
			return err
		}
		logging.Info("Rollback completed")

	case "drop":
		logging.Warn("Dropping ledger tables")
		if err := m.Drop(); err != nil {
			return err
		}
		logging.Info("Ledger tables dropped")

	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Println("No migrations applied")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("Version: %d, Dirty: %v\n", version, dirty)

	default:
		return fmt.Errorf("unknown command %q", command)
	}
	return nil
}
