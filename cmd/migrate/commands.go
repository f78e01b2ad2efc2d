package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/pressly/goose/v3"
)

var errNameRequired = errors.New("name is required for 'create' command")

// runCommand dispatches one goose command against dir. db may be nil for
// "create", which only writes a file.
func runCommand(db *sql.DB, out io.Writer, dir, command, name string) error {
	switch command {
	case "up":
		if err := goose.Up(db, dir); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		fmt.Fprintln(out, "Migrations applied successfully")
	case "down":
		if err := goose.Down(db, dir); err != nil {
			return fmt.Errorf("rollback migrations: %w", err)
		}
		fmt.Fprintln(out, "Migrations rolled back successfully")
	case "status":
		if err := goose.Status(db, dir); err != nil {
			return fmt.Errorf("migration status: %w", err)
		}
	case "create":
		if name == "" {
			return errNameRequired
		}
		if err := goose.Create(nil, dir, name, "sql"); err != nil {
			return fmt.Errorf("create migration: %w", err)
		}
		fmt.Fprintf(out, "Migration created: %s\n", name)
	default:
		return fmt.Errorf("unknown command: %s. Use: up, down, status, create", command)
	}
	return nil
}

// needsDB reports whether command talks to the database.
func needsDB(command string) bool {
	return command != "create"
}
