// Package sql wires up the embedded database QueueCTL persists to: it owns
// connection-pool configuration and runs the goose migrations embedded
// below. It is the only place in the module that knows the on-disk layout
// is SQLite; everything above it talks to repository.Store.
package sql

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"; kept for an operator pointing QUEUECTL_DB at a postgres:// DSN during development
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // registers "sqlite"; the default, crash-safe embedded backend

	"github.com/Ragavinnay/CLI-based-background-job-queue-system/internal/storage/sql/repository"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// DBConfig holds database connection configuration.
type DBConfig struct {
	Driver          string // "sqlite" (default) or "pgx"
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// NewStore opens the database, applies embedded migrations, and returns a
// repository.Store ready for use by the Job Repository, Worker Registry,
// and Config Service.
func NewStore(ctx context.Context, cfg DBConfig) (*repository.Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "sqlite"
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxOpenConns := cfg.MaxOpenConns
	if maxOpenConns <= 0 {
		maxOpenConns = 25
	}
	maxIdleConns := cfg.MaxIdleConns
	if maxIdleConns <= 0 {
		maxIdleConns = 5
	}
	connMaxLifetime := cfg.ConnMaxLifetime
	if connMaxLifetime <= 0 {
		connMaxLifetime = 5 * time.Minute
	}
	connMaxIdleTime := cfg.ConnMaxIdleTime
	if connMaxIdleTime <= 0 {
		connMaxIdleTime = time.Minute
	}

	if driver == "sqlite" {
		// A single connection avoids SQLITE_BUSY errors racing with the
		// busy_timeout pragma: concurrent workers are separate OS
		// processes each opening their own Store (spec §5), so nothing
		// inside one process needs a real pool.
		maxOpenConns = 1
		maxIdleConns = 1
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(db, driver); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repository.NewStore(db, driver), nil
}

func runMigrations(db *sql.DB, driver string) error {
	dialect := "sqlite3"
	if driver == "pgx" {
		dialect = "postgres"
	}

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	goose.SetBaseFS(embedMigrations)

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

// NewSQLiteStore opens (creating if absent) the SQLite file at dbPath with
// the WAL + busy-timeout + foreign-key pragmas spec §6 requires for
// crash-safe persistence. This is the path cmd/queuectl uses for
// QUEUECTL_DB.
func NewSQLiteStore(ctx context.Context, dbPath string) (*repository.Store, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", dbPath)
	return NewStore(ctx, DBConfig{Driver: "sqlite", DSN: dsn})
}
