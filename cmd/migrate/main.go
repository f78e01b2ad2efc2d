package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"mediacatalog/internal/config"
)

func main() {
	var (
		command = flag.String("command", "up", "Migration command: up, down, status, create")
		name    = flag.String("name", "", "Name for 'create' command")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := config.NewLogger(os.Stderr, cfg.LogLevel, "text")

	goose.SetBaseFS(nil)
	if err := goose.SetDialect("postgres"); err != nil {
		logger.Error("set goose dialect", "error", err)
		os.Exit(1)
	}

	var db *sql.DB
	if needsDB(*command) {
		pool, err := pgxpool.New(context.Background(), cfg.DSN)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		db = stdlib.OpenDBFromPool(pool)
		defer db.Close()
	}

	if err := runCommand(db, os.Stdout, cfg.MigrationsDir, *command, *name); err != nil {
		logger.Error("migration failed", "command", *command, "dir", cfg.MigrationsDir, "error", err)
		os.Exit(1)
	}
}
