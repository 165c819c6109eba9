// Package repository implements the Job Repository, Worker Registry, and
// Config Service storage contracts (internal/application/queue,
// internal/config) against a database/sql handle. Queries are
// hand-written rather than sqlc-generated: sqlc's code-generation step
// isn't something this module can invoke as part of building the
// repository, and the teacher itself falls back to raw *sql.DB statements
// (see worker_repository.go's UpdateGenerationJobStatus) for exactly this
// kind of small, state-machine-shaped UPDATE.
package repository

import (
	"database/sql"
)

// Store is the shared database handle every repository/registry/config
// implementation in this package is built on. One Store per OS process
// (spec §5: no shared in-process mutable state across workers).
type Store struct {
	db     *sql.DB
	driver string
}

// NewStore wraps an already-open, already-migrated *sql.DB.
func NewStore(db *sql.DB, driver string) *Store {
	return &Store{db: db, driver: driver}
}

// DB returns the underlying connection, for callers (tests, the CLI) that
// need to inspect or seed data directly.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// JobStore implements queue.Repository. It is a thin wrapper around Store
// rather than Store itself: Repository and Registry both define Get and
// List with conflicting signatures, so they can't be methods of the same
// receiver type.
type JobStore struct{ *Store }

// Jobs returns the Job Repository view of this Store.
func (s *Store) Jobs() *JobStore { return &JobStore{s} }

// WorkerStore implements queue.Registry.
type WorkerStore struct{ *Store }

// Workers returns the Worker Registry view of this Store.
func (s *Store) Workers() *WorkerStore { return &WorkerStore{s} }

// sqliteTimeLayout is fixed-width (always nine fractional digits, always
// UTC via formatTime) so that comparing and ordering the stored strings in
// SQL matches comparing and ordering the times themselves.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"
