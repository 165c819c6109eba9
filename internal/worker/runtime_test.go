package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ragavinnay/CLI-based-background-job-queue-system/internal/application/queue"
	cfgsvc "github.com/Ragavinnay/CLI-based-background-job-queue-system/internal/config"
	"github.com/Ragavinnay/CLI-based-background-job-queue-system/internal/domain"
	"github.com/Ragavinnay/CLI-based-background-job-queue-system/internal/exec"
)

// mockRepository implements queue.Repository for testing.
type mockRepository struct {
	claimNextFunc     func(ctx context.Context, workerID string, now time.Time, staleAfter time.Duration) (*domain.Job, error)
	markCompletedFunc func(ctx context.Context, jobID, workerID, stdout, stderr string, stdoutTrunc, stderrTrunc bool, exitCode int, finishedAt time.Time) error
	markFailedFunc    func(ctx context.Context, jobID, workerID string, execErr queue.ExecutionError, stdout, stderr string, stdoutTrunc, stderrTrunc bool, exitCode *int, now time.Time, decision queue.RetryDecision) error
}

func (m *mockRepository) Insert(ctx context.Context, spec domain.JobSpec, defaultMaxRetries int) (*domain.Job, error) {
	return nil, errors.New("not implemented")
}

func (m *mockRepository) ClaimNext(ctx context.Context, workerID string, now time.Time, staleAfter time.Duration) (*domain.Job, error) {
	if m.claimNextFunc != nil {
		return m.claimNextFunc(ctx, workerID, now, staleAfter)
	}
	return nil, nil
}

func (m *mockRepository) MarkCompleted(ctx context.Context, jobID, workerID, stdout, stderr string, stdoutTrunc, stderrTrunc bool, exitCode int, finishedAt time.Time) error {
	if m.markCompletedFunc != nil {
		return m.markCompletedFunc(ctx, jobID, workerID, stdout, stderr, stdoutTrunc, stderrTrunc, exitCode, finishedAt)
	}
	return nil
}

func (m *mockRepository) MarkFailed(ctx context.Context, jobID, workerID string, execErr queue.ExecutionError, stdout, stderr string, stdoutTrunc, stderrTrunc bool, exitCode *int, now time.Time, decision queue.RetryDecision) error {
	if m.markFailedFunc != nil {
		return m.markFailedFunc(ctx, jobID, workerID, execErr, stdout, stderr, stdoutTrunc, stderrTrunc, exitCode, now, decision)
	}
	return nil
}

func (m *mockRepository) RequeueFromDLQ(ctx context.Context, jobID string, now time.Time) (*domain.Job, error) {
	return nil, errors.New("not implemented")
}

func (m *mockRepository) List(ctx context.Context, stateFilter *domain.JobState) ([]*domain.Job, error) {
	return nil, errors.New("not implemented")
}

func (m *mockRepository) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	return nil, errors.New("not implemented")
}

func (m *mockRepository) CountByState(ctx context.Context) (map[domain.JobState]int, error) {
	return nil, errors.New("not implemented")
}

// mockRegistry implements queue.Registry for testing.
type mockRegistry struct {
	registerFunc     func(ctx context.Context, id string, pid int, host string, now time.Time) (*domain.Worker, error)
	heartbeatFunc    func(ctx context.Context, id string, now time.Time) error
	markStoppingFunc func(ctx context.Context, id string) error
	markStoppedFunc  func(ctx context.Context, id string) error
}

func (m *mockRegistry) Register(ctx context.Context, id string, pid int, host string, now time.Time) (*domain.Worker, error) {
	if m.registerFunc != nil {
		return m.registerFunc(ctx, id, pid, host, now)
	}
	return &domain.Worker{ID: id}, nil
}

func (m *mockRegistry) Heartbeat(ctx context.Context, id string, now time.Time) error {
	if m.heartbeatFunc != nil {
		return m.heartbeatFunc(ctx, id, now)
	}
	return nil
}

func (m *mockRegistry) MarkStopping(ctx context.Context, id string) error {
	if m.markStoppingFunc != nil {
		return m.markStoppingFunc(ctx, id)
	}
	return nil
}

func (m *mockRegistry) MarkStopped(ctx context.Context, id string) error {
	if m.markStoppedFunc != nil {
		return m.markStoppedFunc(ctx, id)
	}
	return nil
}

func (m *mockRegistry) Get(ctx context.Context, id string) (*domain.Worker, error) {
	return nil, errors.New("not implemented")
}

func (m *mockRegistry) List(ctx context.Context) ([]*domain.Worker, error) {
	return nil, errors.New("not implemented")
}

type fakeConfigStore struct {
	values map[string]string
}

func (f *fakeConfigStore) Get(_ context.Context, key string) (string, error) {
	v, ok := f.values[key]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

func (f *fakeConfigStore) Set(_ context.Context, key, value string) error {
	f.values[key] = value
	return nil
}

func (f *fakeConfigStore) All(_ context.Context) (map[string]string, error) {
	out := make(map[string]string, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out, nil
}

func newTestConfigService() *cfgsvc.Service {
	return cfgsvc.New(&fakeConfigStore{values: map[string]string{
		domain.ConfigPollInterval: "0.01",
	}})
}

func TestRuntime_RunJob_CompletesOnSuccess(t *testing.T) {
	job := &domain.Job{ID: "job-1", Command: "true", MaxRetries: 3}
	var completedArgs []any

	repo := &mockRepository{
		markCompletedFunc: func(_ context.Context, jobID, workerID, stdout, stderr string, stdoutTrunc, stderrTrunc bool, exitCode int, finishedAt time.Time) error {
			completedArgs = []any{jobID, workerID, exitCode}
			return nil
		},
	}

	r := New("worker-1", repo, &mockRegistry{}, newTestConfigService(), WithExecutor(
		func(ctx context.Context, command string, timeout time.Duration) (exec.Result, error) {
			return exec.Result{ExitCode: 0, Stdout: "ok"}, nil
		},
	))

	r.runJob(context.Background(), job, domain.RuntimeConfig{BackoffBase: 2})

	require.Len(t, completedArgs, 3)
	assert.Equal(t, "job-1", completedArgs[0])
	assert.Equal(t, "worker-1", completedArgs[1])
	assert.Equal(t, 0, completedArgs[2])
}

func TestRuntime_RunJob_RetriesOnFailureUnderMaxRetries(t *testing.T) {
	job := &domain.Job{ID: "job-2", Command: "false", Attempts: 0, MaxRetries: 3}
	var decision queue.RetryDecision

	repo := &mockRepository{
		markFailedFunc: func(_ context.Context, jobID, workerID string, execErr queue.ExecutionError, stdout, stderr string, stdoutTrunc, stderrTrunc bool, exitCode *int, now time.Time, d queue.RetryDecision) error {
			decision = d
			return nil
		},
	}

	r := New("worker-1", repo, &mockRegistry{}, newTestConfigService(), WithExecutor(
		func(ctx context.Context, command string, timeout time.Duration) (exec.Result, error) {
			ec := 1
			return exec.Result{ExitCode: ec}, queue.ExecutionError{Reason: "nonzero_exit", ExitCode: &ec}
		},
	))

	r.runJob(context.Background(), job, domain.RuntimeConfig{BackoffBase: 2})

	assert.Equal(t, queue.Retry, decision.Kind)
}

func TestRuntime_RunJob_DeadLettersPastMaxRetries(t *testing.T) {
	job := &domain.Job{ID: "job-3", Command: "false", Attempts: 3, MaxRetries: 3}
	var decision queue.RetryDecision

	repo := &mockRepository{
		markFailedFunc: func(_ context.Context, jobID, workerID string, execErr queue.ExecutionError, stdout, stderr string, stdoutTrunc, stderrTrunc bool, exitCode *int, now time.Time, d queue.RetryDecision) error {
			decision = d
			return nil
		},
	}

	r := New("worker-1", repo, &mockRegistry{}, newTestConfigService(), WithExecutor(
		func(ctx context.Context, command string, timeout time.Duration) (exec.Result, error) {
			ec := 1
			return exec.Result{ExitCode: ec}, queue.ExecutionError{Reason: "nonzero_exit", ExitCode: &ec}
		},
	))

	r.runJob(context.Background(), job, domain.RuntimeConfig{BackoffBase: 2})

	assert.Equal(t, queue.Dead, decision.Kind)
}

func TestRuntime_Run_RegistersAndStopsOnSignal(t *testing.T) {
	var registered, stopping, stopped bool

	registry := &mockRegistry{
		registerFunc: func(_ context.Context, id string, pid int, host string, now time.Time) (*domain.Worker, error) {
			registered = true
			return &domain.Worker{ID: id}, nil
		},
		markStoppingFunc: func(_ context.Context, id string) error {
			stopping = true
			return nil
		},
		markStoppedFunc: func(_ context.Context, id string) error {
			stopped = true
			return nil
		},
	}

	r := New("worker-1", &mockRepository{}, registry, newTestConfigService())

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	r.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	assert.True(t, registered)
	assert.True(t, stopping)
	assert.True(t, stopped)
}
