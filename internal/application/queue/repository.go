package queue

import (
	"context"
	"time"

	"github.com/Ragavinnay/CLI-based-background-job-queue-system/internal/domain"
)

// Repository is the set of typed operations over Jobs (spec §4.3). It is
// owned by this package (the consumer), not by the storage package that
// implements it, following the same Dependency Inversion / Interface
// Segregation the teacher repository's worker.Repository interface
// documents.
type Repository interface {
	// Insert creates a Job from spec, generating an id and applying
	// defaults (priority=0, max_retries=Config.max_retries, run_at=now)
	// for any field left unset. Returns DuplicateIdError if spec.ID
	// collides with an existing row.
	Insert(ctx context.Context, spec domain.JobSpec, defaultMaxRetries int) (*domain.Job, error)

	// ClaimNext runs Stuck-Job Recovery and then atomically claims the
	// single top-ranked eligible row for workerID, per the ordering and
	// claim protocol of spec §4.4. Returns (nil, nil) when no job is
	// eligible.
	ClaimNext(ctx context.Context, workerID string, now time.Time, staleAfter time.Duration) (*domain.Job, error)

	// MarkCompleted transitions processing -> completed. Returns
	// ErrOwnershipLost if workerID is not the job's current owner.
	MarkCompleted(ctx context.Context, jobID, workerID, stdout, stderr string, stdoutTrunc, stderrTrunc bool, exitCode int, finishedAt time.Time) error

	// MarkFailed applies a RetryDecision computed by Decide: RETRY
	// resets the job to pending with an incremented attempts counter and
	// a new run_at; DEAD sets state=dead with finished_at=now. Returns
	// ErrOwnershipLost if workerID is not the job's current owner.
	MarkFailed(ctx context.Context, jobID, workerID string, execErr ExecutionError, stdout, stderr string, stdoutTrunc, stderrTrunc bool, exitCode *int, now time.Time, decision RetryDecision) error

	// RequeueFromDLQ moves a job from dead to pending, resetting
	// attempts to 0, clearing picked_by and last_error, and setting
	// run_at to now. Returns NotFoundError if the job doesn't exist or
	// isn't dead.
	RequeueFromDLQ(ctx context.Context, jobID string, now time.Time) (*domain.Job, error)

	// List returns jobs matching stateFilter (nil = all), ordered by
	// enqueued_at ascending.
	List(ctx context.Context, stateFilter *domain.JobState) ([]*domain.Job, error)

	// Get returns a single job by id, or NotFoundError.
	Get(ctx context.Context, jobID string) (*domain.Job, error)

	// CountByState returns the number of jobs in each state.
	CountByState(ctx context.Context) (map[domain.JobState]int, error)
}

// Registry tracks live Worker rows (spec §3 "Worker", §4.5).
type Registry interface {
	// Register inserts a new Worker row in state `starting`.
	Register(ctx context.Context, id string, pid int, host string, now time.Time) (*domain.Worker, error)

	// Heartbeat updates heartbeat_at and, if the worker is still
	// `starting`, transitions it to `running`.
	Heartbeat(ctx context.Context, id string, now time.Time) error

	// MarkStopping transitions a worker to `stopping`.
	MarkStopping(ctx context.Context, id string) error

	// MarkStopped transitions a worker to `stopped`.
	MarkStopped(ctx context.Context, id string) error

	// Get returns a single worker by id.
	Get(ctx context.Context, id string) (*domain.Worker, error)

	// List enumerates all known workers (including stopped ones, for
	// post-mortem inspection per spec §3).
	List(ctx context.Context) ([]*domain.Worker, error)
}
