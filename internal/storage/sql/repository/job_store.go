package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Ragavinnay/CLI-based-background-job-queue-system/internal/application/queue"
	"github.com/Ragavinnay/CLI-based-background-job-queue-system/internal/domain"
	"github.com/Ragavinnay/CLI-based-background-job-queue-system/internal/ptr"
)

// claimCandidates bounds how many top-ranked rows a single ClaimNext call
// will try before giving up (spec §4.4: "retried up to a small bounded
// number of times against the next candidate").
const claimCandidates = 5

const jobColumns = `id, command, state, priority, attempts, max_retries, timeout_seconds, tags,
	run_at, enqueued_at, started_at, finished_at, picked_by, last_error,
	stdout, stderr, stdout_trunc, stderr_trunc, exit_code`

func scanJob(row interface{ Scan(...any) error }) (*domain.Job, error) {
	var j domain.Job
	var runAt, enqueuedAt string
	var startedAt, finishedAt, pickedBy sql.NullString
	var timeoutSeconds sql.NullInt64
	var tags sql.NullString
	var exitCode sql.NullInt64
	var stdoutTrunc, stderrTrunc int

	err := row.Scan(
		&j.ID, &j.Command, &j.State, &j.Priority, &j.Attempts, &j.MaxRetries, &timeoutSeconds, &tags,
		&runAt, &enqueuedAt, &startedAt, &finishedAt, &pickedBy, &j.LastError,
		&j.Stdout, &j.Stderr, &stdoutTrunc, &stderrTrunc, &exitCode,
	)
	if err == sql.ErrNoRows {
		return nil, errNoRows
	}
	if err != nil {
		return nil, err
	}

	if j.RunAt, err = parseTime(runAt); err != nil {
		return nil, fmt.Errorf("parse run_at: %w", err)
	}
	if j.EnqueuedAt, err = parseTime(enqueuedAt); err != nil {
		return nil, fmt.Errorf("parse enqueued_at: %w", err)
	}
	if j.StartedAt, err = scanNullTime(startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if j.FinishedAt, err = scanNullTime(finishedAt); err != nil {
		return nil, fmt.Errorf("parse finished_at: %w", err)
	}
	j.PickedBy = scanNullString(pickedBy)
	j.TimeoutSeconds = scanNullInt(timeoutSeconds)
	j.Tags = decodeTags(tags)
	j.ExitCode = scanNullInt(exitCode)
	j.StdoutTrunc = stdoutTrunc != 0
	j.StderrTrunc = stderrTrunc != 0

	return &j, nil
}

// Insert creates a Job, generating an id if spec.ID is empty and applying
// defaults for priority, max_retries, and run_at (spec §4.3).
func (s *JobStore) Insert(ctx context.Context, spec domain.JobSpec, defaultMaxRetries int) (*domain.Job, error) {
	if spec.Command == "" {
		return nil, queue.Validationf("command is required")
	}

	id := spec.ID
	if id == "" {
		id = uuid.NewString()
	}

	maxRetries := ptr.Deref(spec.MaxRetries, defaultMaxRetries)

	now := time.Now().UTC()
	runAt := now
	if spec.RunAt != nil {
		runAt = spec.RunAt.UTC()
	}

	job := &domain.Job{
		ID:             id,
		Command:        spec.Command,
		State:          domain.JobPending,
		Priority:       spec.Priority,
		MaxRetries:     maxRetries,
		TimeoutSeconds: spec.TimeoutSeconds,
		Tags:           spec.Tags,
		RunAt:          runAt,
		EnqueuedAt:     now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, command, state, priority, attempts, max_retries, timeout_seconds, tags, run_at, enqueued_at, last_error, stdout, stderr)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?, ?, ?, '', '', '')
	`, job.ID, job.Command, job.State, job.Priority, job.MaxRetries, nullInt(job.TimeoutSeconds), encodeTags(job.Tags), formatTime(job.RunAt), formatTime(job.EnqueuedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, queue.DuplicateIdError{ID: id}
		}
		return nil, queue.StoreError{Op: "insert", Err: err}
	}

	return job, nil
}

// ClaimNext runs Stuck-Job Recovery, then atomically claims the
// top-ranked eligible job for workerID (spec §4.4).
func (s *JobStore) ClaimNext(ctx context.Context, workerID string, now time.Time, staleAfter time.Duration) (*domain.Job, error) {
	if err := s.recoverStuckJobs(ctx, now, staleAfter); err != nil {
		return nil, queue.StoreError{Op: "recover_stuck_jobs", Err: err}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, queue.StoreError{Op: "claim_next", Err: err}
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM jobs
		WHERE state = 'pending' AND run_at <= ? AND picked_by IS NULL
		ORDER BY priority DESC, run_at ASC, enqueued_at ASC, id ASC
		LIMIT ?
	`, formatTime(now), claimCandidates)
	if err != nil {
		return nil, queue.StoreError{Op: "claim_next_scan", Err: err}
	}
	var candidates []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, queue.StoreError{Op: "claim_next_scan", Err: err}
		}
		candidates = append(candidates, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, queue.StoreError{Op: "claim_next_scan", Err: err}
	}

	for _, id := range candidates {
		res, err := tx.ExecContext(ctx, `
			UPDATE jobs SET state = 'processing', picked_by = ?, started_at = ?
			WHERE id = ? AND state = 'pending' AND picked_by IS NULL
		`, workerID, formatTime(now), id)
		if err != nil {
			return nil, queue.StoreError{Op: "claim_next_update", Err: err}
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, queue.StoreError{Op: "claim_next_rows_affected", Err: err}
		}
		if affected == 0 {
			// Lost the race for this candidate; try the next one.
			continue
		}

		job, err := scanJob(tx.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", id))
		if err != nil {
			return nil, queue.StoreError{Op: "claim_next_reload", Err: err}
		}
		if err := tx.Commit(); err != nil {
			return nil, queue.StoreError{Op: "claim_next_commit", Err: err}
		}
		return job, nil
	}

	return nil, nil
}

// recoverStuckJobs returns processing jobs whose owning worker's heartbeat
// is stale back to pending (spec §4.4 "Stuck-Job Recovery"). attempts is
// left untouched: the attempt never completed observably.
//
// A worker counts as dead exactly when domain.Worker.IsAlive would say so:
// its status left `running`/`stopping` entirely, or its heartbeat fell
// behind staleAfter regardless of status — a worker that crashes mid-job
// usually still shows `running`, it just stops heartbeating.
func (s *JobStore) recoverStuckJobs(ctx context.Context, now time.Time, staleAfter time.Duration) error {
	cutoff := formatTime(now.Add(-staleAfter))

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, picked_by FROM jobs
		WHERE state = 'processing' AND (
			picked_by NOT IN (SELECT id FROM workers)
			OR picked_by IN (
				SELECT id FROM workers
				WHERE status NOT IN ('running', 'stopping') OR heartbeat_at < ?
			)
		)
	`, cutoff)
	if err != nil {
		return err
	}
	type stuck struct{ jobID, workerID string }
	var reclaimed []stuck
	for rows.Next() {
		var row stuck
		if err := rows.Scan(&row.jobID, &row.workerID); err != nil {
			rows.Close()
			return err
		}
		reclaimed = append(reclaimed, row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, j := range reclaimed {
		_, err := s.db.ExecContext(ctx, `
			UPDATE jobs SET state = 'pending', picked_by = NULL, last_error = 'worker lost'
			WHERE id = ? AND state = 'processing'
		`, j.jobID)
		if err != nil {
			return err
		}
		slog.WarnContext(ctx, "reclaiming job from presumed-dead worker",
			"error", queue.LostWorker{WorkerID: j.workerID, JobID: j.jobID})
	}

	return nil
}

// MarkCompleted transitions processing -> completed (spec §4.3).
func (s *JobStore) MarkCompleted(ctx context.Context, jobID, workerID, stdout, stderr string, stdoutTrunc, stderrTrunc bool, exitCode int, finishedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET state = 'completed', attempts = attempts + 1, picked_by = NULL,
			finished_at = ?, stdout = ?, stderr = ?, stdout_trunc = ?, stderr_trunc = ?, exit_code = ?, last_error = ''
		WHERE id = ? AND state = 'processing' AND picked_by = ?
	`, formatTime(finishedAt), stdout, stderr, boolInt(stdoutTrunc), boolInt(stderrTrunc), exitCode, jobID, workerID)
	if err != nil {
		return queue.StoreError{Op: "mark_completed", Err: err}
	}
	return requireOneRow(res, jobID)
}

// MarkFailed applies a RetryDecision computed by the Retry Policy: either
// reschedule as pending with attempts incremented, or move to dead (spec
// §4.3, §4.6).
func (s *JobStore) MarkFailed(ctx context.Context, jobID, workerID string, execErr queue.ExecutionError, stdout, stderr string, stdoutTrunc, stderrTrunc bool, exitCode *int, now time.Time, decision queue.RetryDecision) error {
	var res sql.Result
	var err error

	switch decision.Kind {
	case queue.Retry:
		res, err = s.db.ExecContext(ctx, `
			UPDATE jobs SET state = 'pending', attempts = attempts + 1, picked_by = NULL, run_at = ?,
				last_error = ?, stdout = ?, stderr = ?, stdout_trunc = ?, stderr_trunc = ?, exit_code = ?
			WHERE id = ? AND state = 'processing' AND picked_by = ?
		`, formatTime(decision.NewRunAt), execErr.Error(), stdout, stderr, boolInt(stdoutTrunc), boolInt(stderrTrunc), nullInt(exitCode), jobID, workerID)
	case queue.Dead:
		res, err = s.db.ExecContext(ctx, `
			UPDATE jobs SET state = 'dead', attempts = attempts + 1, picked_by = NULL, finished_at = ?,
				last_error = ?, stdout = ?, stderr = ?, stdout_trunc = ?, stderr_trunc = ?, exit_code = ?
			WHERE id = ? AND state = 'processing' AND picked_by = ?
		`, formatTime(now), execErr.Error(), stdout, stderr, boolInt(stdoutTrunc), boolInt(stderrTrunc), nullInt(exitCode), jobID, workerID)
	default:
		return fmt.Errorf("mark_failed: unknown retry decision kind %v", decision.Kind)
	}
	if err != nil {
		return queue.StoreError{Op: "mark_failed", Err: err}
	}
	return requireOneRow(res, jobID)
}

// RequeueFromDLQ moves a dead job back to pending (spec §4.3, §4.7
// dlq_retry).
func (s *JobStore) RequeueFromDLQ(ctx context.Context, jobID string, now time.Time) (*domain.Job, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET state = 'pending', attempts = 0, picked_by = NULL, last_error = '',
			run_at = ?, started_at = NULL, finished_at = NULL
		WHERE id = ? AND state = 'dead'
	`, formatTime(now), jobID)
	if err != nil {
		return nil, queue.StoreError{Op: "requeue_from_dlq", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, queue.StoreError{Op: "requeue_from_dlq_rows", Err: err}
	}
	if affected == 0 {
		if _, getErr := s.Get(ctx, jobID); queue.IsNotFound(getErr) {
			return nil, queue.NotFoundError{Kind: "job", ID: jobID}
		}
		return nil, queue.NotFoundError{Kind: "dead job", ID: jobID}
	}

	return s.Get(ctx, jobID)
}

// List returns jobs matching stateFilter (nil = all), ordered by
// enqueued_at ascending (spec §4.7).
func (s *JobStore) List(ctx context.Context, stateFilter *domain.JobState) ([]*domain.Job, error) {
	query := "SELECT " + jobColumns + " FROM jobs"
	args := []any{}
	if stateFilter != nil {
		query += " WHERE state = ?"
		args = append(args, string(*stateFilter))
	}
	query += " ORDER BY enqueued_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, queue.StoreError{Op: "list", Err: err}
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, queue.StoreError{Op: "list_scan", Err: err}
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Get returns a single job by id.
func (s *JobStore) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := scanJob(s.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", jobID))
	if err == errNoRows {
		return nil, queue.NotFoundError{Kind: "job", ID: jobID}
	}
	if err != nil {
		return nil, queue.StoreError{Op: "get", Err: err}
	}
	return job, nil
}

// CountByState returns the number of jobs in each state.
func (s *JobStore) CountByState(ctx context.Context) (map[domain.JobState]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT state, COUNT(*) FROM jobs GROUP BY state")
	if err != nil {
		return nil, queue.StoreError{Op: "count_by_state", Err: err}
	}
	defer rows.Close()

	counts := make(map[domain.JobState]int)
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, queue.StoreError{Op: "count_by_state_scan", Err: err}
		}
		counts[domain.JobState(state)] = count
	}
	return counts, rows.Err()
}

func requireOneRow(res sql.Result, jobID string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return queue.StoreError{Op: "rows_affected", Err: err}
	}
	if affected == 0 {
		return queue.ErrOwnershipLost
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite reports UNIQUE constraint failures with this
	// substring; there is no typed sentinel exported for it.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
