// Package control implements the Control Operations (spec §4.7): thin,
// stateless functions the CLI invokes, each composing one or a few
// Repository/Registry/Config Service calls in a single call.
package control

import (
	"context"
	"fmt"
	"time"

	"github.com/Ragavinnay/CLI-based-background-job-queue-system/internal/application/queue"
	cfgsvc "github.com/Ragavinnay/CLI-based-background-job-queue-system/internal/config"
	"github.com/Ragavinnay/CLI-based-background-job-queue-system/internal/domain"
)

// Status is the result of the status() control operation.
type Status struct {
	CountsByState map[domain.JobState]int
	Workers       []*domain.Worker
}

// WorkerLauncher spawns and stops Worker Runtime OS processes. cmd/queuectl
// supplies the concrete implementation (self-exec via os.Executable).
type WorkerLauncher interface {
	// Start spawns count new worker processes and blocks until each has
	// registered in the Worker Registry (or a timeout elapses).
	Start(ctx context.Context, count int) error
	// Stop signals every live worker to shut down gracefully, waiting up
	// to a bounded timeout for all to reach `stopped`.
	Stop(ctx context.Context) error
}

// Facade is the Control Operations surface the CLI drives.
type Facade struct {
	jobs     queue.Repository
	workers  queue.Registry
	config   *cfgsvc.Service
	launcher WorkerLauncher
}

// New builds a Facade over the given collaborators.
func New(jobs queue.Repository, workers queue.Registry, config *cfgsvc.Service, launcher WorkerLauncher) *Facade {
	return &Facade{jobs: jobs, workers: workers, config: config, launcher: launcher}
}

// Enqueue inserts a job from spec, applying Config.max_retries as the
// default when spec.MaxRetries is unset.
func (f *Facade) Enqueue(ctx context.Context, spec domain.JobSpec) (*domain.Job, error) {
	rt, err := f.config.Runtime(ctx)
	if err != nil {
		return nil, err
	}
	return f.jobs.Insert(ctx, spec, rt.MaxRetries)
}

// List returns jobs matching stateFilter (nil = all), ordered by
// enqueued_at ascending.
func (f *Facade) List(ctx context.Context, stateFilter *domain.JobState) ([]*domain.Job, error) {
	return f.jobs.List(ctx, stateFilter)
}

// Get returns a single job by id.
func (f *Facade) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	return f.jobs.Get(ctx, jobID)
}

// Status returns counts-by-state and the full worker list.
func (f *Facade) Status(ctx context.Context) (Status, error) {
	counts, err := f.jobs.CountByState(ctx)
	if err != nil {
		return Status{}, err
	}
	workers, err := f.workers.List(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{CountsByState: counts, Workers: workers}, nil
}

// DLQList returns jobs where state=dead.
func (f *Facade) DLQList(ctx context.Context) ([]*domain.Job, error) {
	dead := domain.JobDead
	return f.jobs.List(ctx, &dead)
}

// DLQRetry requeues a dead job back to pending.
func (f *Facade) DLQRetry(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := f.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.State != domain.JobDead {
		return nil, queue.NotFoundError{Kind: "dead job", ID: jobID}
	}
	return f.jobs.RequeueFromDLQ(ctx, jobID, time.Now().UTC())
}

// WorkerStart spawns count Worker Runtime processes and returns once they
// have all registered.
func (f *Facade) WorkerStart(ctx context.Context, count int) error {
	if count <= 0 {
		return queue.Validationf("worker count must be positive, got %d", count)
	}
	return f.launcher.Start(ctx, count)
}

// WorkerStop sends a graceful shutdown signal to every live worker.
func (f *Facade) WorkerStop(ctx context.Context) error {
	return f.launcher.Stop(ctx)
}

// ConfigGet returns every recognized config key merged with defaults.
func (f *Facade) ConfigGet(ctx context.Context) (map[string]string, error) {
	return f.config.Get(ctx)
}

// ConfigSet validates and persists one config value.
func (f *Facade) ConfigSet(ctx context.Context, key, value string) error {
	return f.config.Set(ctx, key, value)
}

// String renders a Status for CLI display.
func (s Status) String() string {
	out := "counts:\n"
	for _, state := range []domain.JobState{domain.JobPending, domain.JobProcessing, domain.JobCompleted, domain.JobFailed, domain.JobDead} {
		out += fmt.Sprintf("  %-10s %d\n", state, s.CountsByState[state])
	}
	out += "workers:\n"
	for _, w := range s.Workers {
		out += fmt.Sprintf("  %-36s pid=%-8d status=%-10s heartbeat=%s\n", w.ID, w.OSPID, w.Status, w.HeartbeatAt.Format(time.RFC3339))
	}
	return out
}
