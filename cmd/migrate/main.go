package main

import (
	"errors"
	"flag"
	"log/slog"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/joao-fontenele/assetflow/internal/config"
)

func main() {
	source := flag.String("source", "file://migrations", "migration source URL")
	flag.Parse()
	args := flag.Args()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := cfg.Logger()

	if len(args) < 1 {
		logger.Error("usage: migrate [-source url] <up|down|goto N|force N|version>")
		os.Exit(1)
	}
	if err := cfg.RequirePostgres(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}
	if v := os.Getenv("MIGRATIONS_PATH"); v != "" {
		*source = v
	}

	m, err := migrate.New(*source, cfg.PostgresURL)
	if err != nil {
		logger.Error("failed to create migrate instance", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _, _ = m.Close() }()

	command := args[0]

	switch command {
	case "up":
		err = m.Up()
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("no pending migrations")
			return
		}
		if err != nil {
			logger.Error("migration up failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("migrations applied successfully")

	case "down":
		err = m.Steps(-1)
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("no migrations to rollback")
			return
		}
		if err != nil {
			logger.Error("migration down failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("migration rolled back successfully")

	case "goto", "force":
		if len(args) < 2 {
			logger.Error("missing version", slog.String("command", command))
			os.Exit(1)
		}
		target, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			logger.Error("invalid version", slog.String("version", args[1]))
			os.Exit(1)
		}
		if command == "goto" {
			err = m.Migrate(uint(target))
		} else {
			err = m.Force(int(target))
		}
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			logger.Error("migration failed", slog.String("command", command), slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("migrated", slog.String("command", command), slog.Uint64("version", target))

	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			logger.Info("no migrations applied yet")
			return
		}
		if err != nil {
			logger.Error("failed to get version", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("current migration version", slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))

	default:
		logger.Error("unknown command", slog.String("command", command))
		os.Exit(1)
	}
}
