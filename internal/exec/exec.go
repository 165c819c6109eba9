// Package exec runs a Job's command as a child OS process (spec §4.5): a
// POSIX shell invocation with captured, truncated stdout/stderr and a
// wall-clock timeout enforced with SIGTERM then SIGKILL.
package exec

import (
	"bytes"
	"context"
	"os/exec"
	"syscall"
	"time"

	"github.com/Ragavinnay/CLI-based-background-job-queue-system/internal/application/queue"
	"github.com/Ragavinnay/CLI-based-background-job-queue-system/internal/ptr"
)

// captureCap is the truncation cap recommended by spec §4.5 for captured
// stdout/stderr.
const captureCap = 64 * 1024

// killGrace is how long a timed-out child gets between SIGTERM and
// SIGKILL (spec §4.5).
const killGrace = 5 * time.Second

// Result is everything a Job Repository mark_completed/mark_failed call
// needs about one attempt.
type Result struct {
	Stdout      string
	Stderr      string
	StdoutTrunc bool
	StderrTrunc bool
	ExitCode    int
}

// Run executes command via `/bin/sh -c` with stdin attached to /dev/null,
// capturing stdout/stderr up to captureCap bytes each. If timeout elapses
// before the child exits, it is sent SIGTERM, given killGrace to exit, then
// SIGKILL'd; the returned error is a queue.ExecutionError with
// Reason="timeout" and ExitCode 124.
func Run(ctx context.Context, command string, timeout time.Duration) (Result, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", command)
	cmd.Stdin = nil

	var stdout, stderr capBuffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// Cancel handles SIGTERM; WaitDelay gives the grace period before
	// exec.CommandContext escalates to SIGKILL on its own.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = killGrace

	startErr := cmd.Start()
	if startErr != nil {
		return Result{}, queue.ExecutionError{Reason: "spawn", Detail: startErr.Error()}
	}

	waitErr := cmd.Wait()

	result := Result{
		Stdout:      stdout.String(),
		Stderr:      stderr.String(),
		StdoutTrunc: stdout.truncated,
		StderrTrunc: stderr.truncated,
	}

	if runCtx.Err() == context.DeadlineExceeded {
		result.ExitCode = 124
		return result, queue.ExecutionError{Reason: "timeout", ExitCode: ptr.To(124), Detail: "job_timeout exceeded"}
	}

	if waitErr != nil {
		exitCode := -1
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		result.ExitCode = exitCode
		return result, queue.ExecutionError{Reason: "nonzero_exit", ExitCode: ptr.To(exitCode), Detail: waitErr.Error()}
	}

	result.ExitCode = 0
	return result, nil
}

// capBuffer is a bytes.Buffer that silently stops accepting writes past
// captureCap bytes and remembers that it did.
type capBuffer struct {
	buf       bytes.Buffer
	truncated bool
}

func (c *capBuffer) Write(p []byte) (int, error) {
	remaining := captureCap - c.buf.Len()
	if remaining <= 0 {
		c.truncated = true
		return len(p), nil
	}
	if len(p) > remaining {
		c.buf.Write(p[:remaining])
		c.truncated = true
		return len(p), nil
	}
	c.buf.Write(p)
	return len(p), nil
}

func (c *capBuffer) String() string { return c.buf.String() }
