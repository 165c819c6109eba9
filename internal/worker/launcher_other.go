//go:build !unix

package worker

import "syscall"

func signalWorker(pid int) error {
	return nil
}

func detachedAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{}
}
