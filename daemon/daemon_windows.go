//go:build windows

package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

var (
	kernel32                = syscall.NewLazyDLL("kernel32.dll")
	procOpenProcess         = kernel32.NewProc("OpenProcess")
	procCloseHandle         = kernel32.NewProc("CloseHandle")
	processQueryLimitedInfo = uint32(0x1000)
)

const (
	stopFilePrefix   = "associate-stop-"
	stopPollInterval = 500 * time.Millisecond
)

// IsProcessRunning opens the process with minimal rights to test existence.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}

	handle, _, _ := procOpenProcess.Call(
		uintptr(processQueryLimitedInfo),
		uintptr(0),
		uintptr(pid),
	)
	if handle == 0 {
		return false
	}
	procCloseHandle.Call(handle)
	return true
}

func stopFilePath(dir string, pid int) string {
	return filepath.Join(dir, fmt.Sprintf("%s%d", stopFilePrefix, pid))
}

// StopProcess writes a sentinel file that the server polls for, since
// console interrupts cannot be delivered across consoles on Windows.
func StopProcess(dir string, pid int) error {
	if pid <= 0 {
		return fmt.Errorf("invalid PID: %d", pid)
	}
	if !IsProcessRunning(pid) {
		return fmt.Errorf("process %d is not running", pid)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := os.WriteFile(stopFilePath(dir, pid), []byte(fmt.Sprintf("%d\n", pid)), 0600); err != nil {
		return fmt.Errorf("failed to write stop file: %w", err)
	}
	return nil
}

// StopChannel is closed once a stop file for the current process appears.
// Polling ends when ctx is done.
func StopChannel(ctx context.Context, dir string) <-chan struct{} {
	ch := make(chan struct{})
	path := stopFilePath(dir, os.Getpid())

	// A previous run may have reused this PID.
	_ = os.Remove(path)

	go func() {
		ticker := time.NewTicker(stopPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := os.Stat(path); err == nil {
					_ = os.Remove(path)
					close(ch)
					return
				}
			}
		}
	}()
	return ch
}
