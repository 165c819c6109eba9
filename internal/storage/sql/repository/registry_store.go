package repository

import (
	"context"
	"time"

	"github.com/Ragavinnay/CLI-based-background-job-queue-system/internal/application/queue"
	"github.com/Ragavinnay/CLI-based-background-job-queue-system/internal/domain"
)

const workerColumns = `id, os_pid, status, started_at, heartbeat_at, host`

func scanWorker(row interface{ Scan(...any) error }) (*domain.Worker, error) {
	var w domain.Worker
	var startedAt, heartbeatAt string

	err := row.Scan(&w.ID, &w.OSPID, &w.Status, &startedAt, &heartbeatAt, &w.Host)
	if err != nil {
		return nil, err
	}
	if w.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if w.HeartbeatAt, err = parseTime(heartbeatAt); err != nil {
		return nil, err
	}
	return &w, nil
}

// Register inserts a new worker row in the starting state (spec §4.5,
// worker_start).
func (s *WorkerStore) Register(ctx context.Context, id string, pid int, host string, now time.Time) (*domain.Worker, error) {
	w := &domain.Worker{
		ID:          id,
		OSPID:       pid,
		Status:      domain.WorkerStarting,
		StartedAt:   now,
		HeartbeatAt: now,
		Host:        host,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workers (id, os_pid, status, started_at, heartbeat_at, host)
		VALUES (?, ?, ?, ?, ?, ?)
	`, w.ID, w.OSPID, w.Status, formatTime(w.StartedAt), formatTime(w.HeartbeatAt), w.Host)
	if err != nil {
		return nil, queue.StoreError{Op: "register_worker", Err: err}
	}
	return w, nil
}

// Heartbeat refreshes heartbeat_at and, on the first call after starting,
// promotes the worker to running (spec §4.5).
func (s *WorkerStore) Heartbeat(ctx context.Context, id string, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE workers SET heartbeat_at = ?,
			status = CASE WHEN status = 'starting' THEN 'running' ELSE status END
		WHERE id = ? AND status IN ('starting', 'running')
	`, formatTime(now), id)
	if err != nil {
		return queue.StoreError{Op: "heartbeat", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return queue.StoreError{Op: "heartbeat_rows", Err: err}
	}
	if affected == 0 {
		return queue.NotFoundError{Kind: "worker", ID: id}
	}
	return nil
}

// MarkStopping marks a worker as draining (spec §4.5, worker_stop: SIGTERM
// sent, graceful shutdown in progress).
func (s *WorkerStore) MarkStopping(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE workers SET status = 'stopping' WHERE id = ? AND status IN ('starting', 'running')`, id)
	if err != nil {
		return queue.StoreError{Op: "mark_stopping", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return queue.StoreError{Op: "mark_stopping_rows", Err: err}
	}
	if affected == 0 {
		return queue.NotFoundError{Kind: "worker", ID: id}
	}
	return nil
}

// MarkStopped records that a worker process has exited cleanly.
func (s *WorkerStore) MarkStopped(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE workers SET status = 'stopped' WHERE id = ?`, id)
	if err != nil {
		return queue.StoreError{Op: "mark_stopped", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return queue.StoreError{Op: "mark_stopped_rows", Err: err}
	}
	if affected == 0 {
		return queue.NotFoundError{Kind: "worker", ID: id}
	}
	return nil
}

// Get returns a single worker by id.
func (s *WorkerStore) Get(ctx context.Context, id string) (*domain.Worker, error) {
	w, err := scanWorker(s.db.QueryRowContext(ctx, "SELECT "+workerColumns+" FROM workers WHERE id = ?", id))
	if err != nil {
		return nil, queue.NotFoundError{Kind: "worker", ID: id}
	}
	return w, nil
}

// List returns every worker row, most recently started first.
func (s *WorkerStore) List(ctx context.Context) ([]*domain.Worker, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+workerColumns+" FROM workers ORDER BY started_at DESC")
	if err != nil {
		return nil, queue.StoreError{Op: "list_workers", Err: err}
	}
	defer rows.Close()

	var workers []*domain.Worker
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, queue.StoreError{Op: "list_workers_scan", Err: err}
		}
		workers = append(workers, w)
	}
	return workers, rows.Err()
}
