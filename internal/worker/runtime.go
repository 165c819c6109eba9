// Package worker implements the Worker Runtime (spec §4.5): an OS-level
// process that registers itself, then loops heartbeat → claim → execute →
// finalize until asked to shut down.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Ragavinnay/CLI-based-background-job-queue-system/internal/application/queue"
	cfgsvc "github.com/Ragavinnay/CLI-based-background-job-queue-system/internal/config"
	"github.com/Ragavinnay/CLI-based-background-job-queue-system/internal/domain"
	"github.com/Ragavinnay/CLI-based-background-job-queue-system/internal/exec"
)

// staleFloor is the minimum heartbeat staleness Stuck-Job Recovery will
// tolerate, regardless of how fast poll_interval is configured (spec
// §4.4: max(3*poll_interval, 30s)).
const staleFloor = 30 * time.Second

// Runtime is one Worker Runtime instance (spec §4.5). It owns exactly one
// OS process's worth of state; concurrent workers are always separate
// Runtimes in separate processes (spec §5).
type Runtime struct {
	id       string
	jobs     queue.Repository
	workers  queue.Registry
	config   *cfgsvc.Service
	executor func(ctx context.Context, command string, timeout time.Duration) (exec.Result, error)

	operationTimeout time.Duration

	done chan struct{}
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithOperationTimeout bounds each individual Repository/Registry call.
func WithOperationTimeout(d time.Duration) Option {
	return func(r *Runtime) { r.operationTimeout = d }
}

// WithExecutor overrides the command executor; tests use this to avoid
// spawning real child processes.
func WithExecutor(fn func(ctx context.Context, command string, timeout time.Duration) (exec.Result, error)) Option {
	return func(r *Runtime) { r.executor = fn }
}

// New builds a Runtime identified by id, backed by jobs/workers/config.
func New(id string, jobs queue.Repository, workers queue.Registry, config *cfgsvc.Service, opts ...Option) *Runtime {
	r := &Runtime{
		id:               id,
		jobs:             jobs,
		workers:          workers,
		config:           config,
		executor:         exec.Run,
		operationTimeout: 10 * time.Second,
		done:             make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run registers the worker and drives its main loop until ctx is
// cancelled or Stop is called (spec §4.5 steps 1-3).
func (r *Runtime) Run(ctx context.Context) error {
	host, _ := os.Hostname()

	regCtx, cancel := context.WithTimeout(ctx, r.operationTimeout)
	_, err := r.workers.Register(regCtx, r.id, os.Getpid(), host, time.Now().UTC())
	cancel()
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "worker registered", "worker_id", r.id, "pid", os.Getpid())

	for {
		select {
		case <-r.done:
			return r.shutdown(ctx)
		case <-ctx.Done():
			return r.shutdown(context.Background())
		default:
		}

		rt, err := r.config.Runtime(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "failed to read config", "error", err)
			rt = domain.RuntimeConfig{PollInterval: 500 * time.Millisecond}
		}

		now := time.Now().UTC()
		hbCtx, cancel := context.WithTimeout(ctx, r.operationTimeout)
		hbErr := r.workers.Heartbeat(hbCtx, r.id, now)
		cancel()
		if hbErr != nil {
			slog.ErrorContext(ctx, "heartbeat failed", "worker_id", r.id, "error", hbErr)
		}

		staleAfter := rt.PollInterval * 3
		if staleAfter < staleFloor {
			staleAfter = staleFloor
		}

		claimCtx, cancel := context.WithTimeout(ctx, r.operationTimeout)
		job, err := r.jobs.ClaimNext(claimCtx, r.id, now, staleAfter)
		cancel()
		if err != nil {
			slog.ErrorContext(ctx, "claim failed", "worker_id", r.id, "error", err)
			job = nil
		}

		if job == nil {
			select {
			case <-time.After(rt.PollInterval):
			case <-r.done:
				return r.shutdown(ctx)
			case <-ctx.Done():
				return r.shutdown(context.Background())
			}
			continue
		}

		r.runJob(ctx, job, rt)
	}
}

// runJob executes one claimed job to completion and finalizes it. It
// always runs to completion even if a shutdown signal arrives mid-flight
// (spec §4.7 worker_stop: "completes it before exiting").
func (r *Runtime) runJob(ctx context.Context, job *domain.Job, rt domain.RuntimeConfig) {
	slog.InfoContext(ctx, "claimed job", "worker_id", r.id, "job_id", job.ID, "command", job.Command)

	// Finalize calls must still reach the store after ctx is cancelled by a
	// shutdown signal, so they derive from an uncancellable copy of ctx.
	finalizeBase := context.WithoutCancel(ctx)

	// A panic in the executor or a finalize call fails the job instead of
	// killing the worker process.
	defer func() {
		if p := recover(); p != nil {
			slog.ErrorContext(ctx, "panic while running job", "worker_id", r.id, "job_id", job.ID, "panic", p)
			now := time.Now().UTC()
			internalErr := queue.ExecutionError{Reason: "internal", Detail: fmt.Sprint(p)}
			decision := queue.Decide(job.Attempts+1, job.MaxRetries, rt.BackoffBase, now)
			panicCtx, cancel := context.WithTimeout(finalizeBase, r.operationTimeout)
			_ = r.jobs.MarkFailed(panicCtx, job.ID, r.id, internalErr, "", "", false, false, nil, now, decision)
			cancel()
		}
	}()

	timeout := rt.JobTimeout
	if job.TimeoutSeconds != nil {
		timeout = time.Duration(*job.TimeoutSeconds) * time.Second
	}

	result, execErr := r.executor(context.Background(), job.Command, timeout)
	now := time.Now().UTC()

	if execErr == nil {
		finalizeCtx, cancel := context.WithTimeout(finalizeBase, r.operationTimeout)
		err := r.jobs.MarkCompleted(finalizeCtx, job.ID, r.id, result.Stdout, result.Stderr, result.StdoutTrunc, result.StderrTrunc, result.ExitCode, now)
		cancel()
		if err != nil {
			slog.ErrorContext(ctx, "mark_completed failed", "worker_id", r.id, "job_id", job.ID, "error", err)
		}
		slog.InfoContext(ctx, "job completed", "worker_id", r.id, "job_id", job.ID)
		return
	}

	executionErr, _ := execErr.(queue.ExecutionError)
	decision := queue.Decide(job.Attempts+1, job.MaxRetries, rt.BackoffBase, now)

	finalizeCtx, cancel := context.WithTimeout(finalizeBase, r.operationTimeout)
	err := r.jobs.MarkFailed(finalizeCtx, job.ID, r.id, executionErr, result.Stdout, result.Stderr, result.StdoutTrunc, result.StderrTrunc, &result.ExitCode, now, decision)
	cancel()
	if err != nil {
		slog.ErrorContext(ctx, "mark_failed failed", "worker_id", r.id, "job_id", job.ID, "error", err)
	}

	if decision.Kind == queue.Dead {
		slog.WarnContext(ctx, "job moved to dead letter queue", "worker_id", r.id, "job_id", job.ID, "reason", executionErr.Reason)
	} else {
		slog.WarnContext(ctx, "job attempt failed, will retry", "worker_id", r.id, "job_id", job.ID, "reason", executionErr.Reason, "retry_at", decision.NewRunAt)
	}
}

// Stop requests graceful shutdown; Run returns once the current job (if
// any) finishes and status is persisted as stopped.
func (r *Runtime) Stop() {
	select {
	case <-r.done:
	default:
		close(r.done)
	}
}

func (r *Runtime) shutdown(ctx context.Context) error {
	stoppingCtx, cancel := context.WithTimeout(ctx, r.operationTimeout)
	_ = r.workers.MarkStopping(stoppingCtx, r.id)
	cancel()

	stoppedCtx, cancel := context.WithTimeout(ctx, r.operationTimeout)
	err := r.workers.MarkStopped(stoppedCtx, r.id)
	cancel()

	slog.InfoContext(ctx, "worker stopped", "worker_id", r.id)
	return err
}
