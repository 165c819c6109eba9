package worker

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"

	"github.com/Ragavinnay/CLI-based-background-job-queue-system/internal/application/queue"
	"github.com/Ragavinnay/CLI-based-background-job-queue-system/internal/domain"
)

// registerPollInterval is how often ProcessLauncher.Start polls the
// Registry while waiting for spawned workers to show up.
const registerPollInterval = 50 * time.Millisecond

// startTimeout bounds how long Start waits for all spawned workers to
// register before giving up.
const startTimeout = 10 * time.Second

// stopTimeout is the bounded wait spec §4.7 worker_stop allows before
// giving up on a worker and marking it lost.
const stopTimeout = 30 * time.Second

// ProcessLauncher implements control.WorkerLauncher by self-exec'ing the
// current binary with a hidden subcommand, so each Worker Runtime is a
// real, independently crashable OS process (spec §4.5).
type ProcessLauncher struct {
	dbPath  string
	workers queue.Registry
}

// NewProcessLauncher builds a launcher that spawns workers pointed at
// dbPath, tracking them through workers.
func NewProcessLauncher(dbPath string, workers queue.Registry) *ProcessLauncher {
	return &ProcessLauncher{dbPath: dbPath, workers: workers}
}

// Start spawns count detached worker processes and blocks until each has
// registered in the Worker Registry, or startTimeout elapses.
func (l *ProcessLauncher) Start(ctx context.Context, count int) error {
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve self executable: %w", err)
	}

	ids := make([]string, count)
	for i := range ids {
		id := uuid.NewString()
		ids[i] = id

		cmd := exec.Command(self, "__run-worker", "--id", id, "--db", l.dbPath)
		cmd.Stdin = nil
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		cmd.SysProcAttr = detachedAttr()

		if err := cmd.Start(); err != nil {
			return fmt.Errorf("spawn worker %s: %w", id, err)
		}
		// Detach: we don't Wait() on it. The Worker Registry, not a
		// *os.Process handle, is the source of truth for liveness.
		go func() { _ = cmd.Process.Release() }()
	}

	deadline := time.Now().Add(startTimeout)
	pending := make(map[string]bool, count)
	for _, id := range ids {
		pending[id] = true
	}

	for len(pending) > 0 && time.Now().Before(deadline) {
		for id := range pending {
			if w, err := l.workers.Get(ctx, id); err == nil && w != nil {
				delete(pending, id)
			}
		}
		if len(pending) > 0 {
			time.Sleep(registerPollInterval)
		}
	}

	if len(pending) > 0 {
		return fmt.Errorf("%d of %d workers did not register within %s", len(pending), count, startTimeout)
	}
	return nil
}

// Stop sends a graceful shutdown signal to every live worker, then polls
// the Registry until all reach `stopped` or stopTimeout elapses.
func (l *ProcessLauncher) Stop(ctx context.Context) error {
	all, err := l.workers.List(ctx)
	if err != nil {
		return err
	}

	live := make([]*domain.Worker, 0, len(all))
	for _, w := range all {
		if w.Status != domain.WorkerStopped {
			live = append(live, w)
		}
	}

	for _, w := range live {
		// A worker we can't signal (already gone, or signaling isn't
		// meaningful for it) is treated the same as one that simply
		// doesn't respond: the registry poll below decides liveness,
		// not our ability to deliver a signal.
		_ = signalWorker(w.OSPID)
	}

	deadline := time.Now().Add(stopTimeout)
	pending := make(map[string]bool, len(live))
	for _, w := range live {
		pending[w.ID] = true
	}

	for len(pending) > 0 && time.Now().Before(deadline) {
		for id := range pending {
			w, err := l.workers.Get(ctx, id)
			if err == nil && w != nil && w.Status == "stopped" {
				delete(pending, id)
			}
		}
		if len(pending) > 0 {
			time.Sleep(registerPollInterval)
		}
	}

	for id := range pending {
		_ = l.workers.MarkStopped(ctx, id)
	}
	return nil
}
