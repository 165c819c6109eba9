// Package queue defines the storage-agnostic contracts (Repository,
// Registry, and the Decide retry policy) that the job-execution engine is built from, plus
// the error taxonomy spec §7 requires. Nothing here talks to a database.
package queue

import (
	"errors"
	"fmt"
)

// === Validation & request errors (surfaced to the CLI, exit code 2) ===

// ValidationError covers malformed enqueue JSON, a missing command, or an
// unknown --state filter. A negative/mistyped config value is reported as
// config.ConfigError instead, which the CLI also maps to exit code 2.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

func Validationf(format string, args ...any) error {
	return ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var v ValidationError
	return errors.As(err, &v)
}

// DuplicateIdError is returned by insert() when the supplied id already
// exists in the Jobs table.
type DuplicateIdError struct {
	ID string
}

func (e DuplicateIdError) Error() string { return fmt.Sprintf("job id %q already exists", e.ID) }

func IsDuplicateId(err error) bool {
	var d DuplicateIdError
	return errors.As(err, &d)
}

// NotFoundError is returned for dlq-retry on a nonexistent or non-dead job,
// and for any get(job_id) that misses.
type NotFoundError struct {
	Kind string // "job", "worker", "dead letter job"
	ID   string
}

func (e NotFoundError) Error() string { return fmt.Sprintf("%s %q not found", e.Kind, e.ID) }

func IsNotFound(err error) bool {
	var n NotFoundError
	return errors.As(err, &n)
}

// === Storage-level errors ===

// StoreError wraps a lower-level storage failure that survived the
// Repository's own bounded retry budget.
type StoreError struct {
	Op  string
	Err error
}

func (e StoreError) Error() string  { return fmt.Sprintf("store: %s: %v", e.Op, e.Err) }
func (e StoreError) Unwrap() error  { return e.Err }

func IsStoreError(err error) bool {
	var s StoreError
	return errors.As(err, &s)
}

// === Attempt-level errors (never surfaced to the CLI; fed to Retry Policy) ===

// ExecutionError records why a single job attempt failed: the child
// process failed to spawn, exited non-zero, or was killed for exceeding
// its timeout.
type ExecutionError struct {
	Reason   string // "spawn", "nonzero_exit", "timeout"
	ExitCode *int
	Detail   string
}

func (e ExecutionError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
	}
	return e.Reason
}

func IsExecutionError(err error) bool {
	var x ExecutionError
	return errors.As(err, &x)
}

// === Ownership / staleness (internal, never user-facing) ===

// ErrOwnershipLost is returned by a mutating Repository call when the
// calling worker is no longer the job's current owner (it was already
// reclaimed by Stuck-Job Recovery or finalized by another caller).
var ErrOwnershipLost = errors.New("job ownership lost")

// LostWorker is logged by Stuck-Job Recovery when it reclaims a job from a
// worker whose heartbeat has gone stale. It is never returned to a caller.
type LostWorker struct {
	WorkerID string
	JobID    string
}

func (e LostWorker) Error() string {
	return fmt.Sprintf("worker %s presumed dead, reclaiming job %s", e.WorkerID, e.JobID)
}
