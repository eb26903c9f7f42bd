//go:build !windows

package daemon

import (
	"context"
	"fmt"
	"os"
	"syscall"
)

// IsProcessRunning reports whether pid names a live process.
// Signal 0 checks existence without delivering anything.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// StopProcess sends SIGINT to the process with the given PID.
func StopProcess(_ string, pid int) error {
	if pid <= 0 {
		return fmt.Errorf("invalid PID: %d", pid)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}

	if err := process.Signal(os.Interrupt); err != nil {
		return fmt.Errorf("failed to send interrupt signal: %w", err)
	}
	return nil
}

// StopChannel returns a channel that never fires on Unix; shutdown arrives
// through os/signal.
func StopChannel(_ context.Context, _ string) <-chan struct{} {
	return make(chan struct{})
}
