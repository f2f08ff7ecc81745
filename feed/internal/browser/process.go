package browser

import (
	"errors"
	"os"
	"syscall"
	"time"
)

const (
	// exitTimeout bounds how long Close waits for Chrome to flush its
	// profile and exit before killing it.
	exitTimeout = 15 * time.Second
	exitPoll    = 100 * time.Millisecond
)

// processAlive reports whether pid still names a running process.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = p.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

// waitExit polls until pid has exited or timeout elapses. It returns
// false if the process is still running.
func waitExit(pid int, timeout, poll time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for processAlive(pid) {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(poll)
	}
	return true
}
