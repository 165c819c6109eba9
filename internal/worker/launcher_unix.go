//go:build unix

package worker

import (
	"os"
	"syscall"
)

// signalWorker sends the graceful shutdown signal (spec §5: "the worker
// treats both SIGINT and SIGTERM as the graceful shutdown signal").
func signalWorker(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(syscall.SIGTERM)
}

// detachedAttr puts a spawned worker in its own session so it survives
// the launching queuectl process exiting.
func detachedAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}
