// Package daemon manages the lifetime of a running "associate serve" process.
//
// A server claims its state directory by taking an exclusive lock on
// associate.pid.lock and writing its process ID to associate.pid. Other
// invocations (status, stop) read the PID file to find it.
//
//	lock, err := daemon.AcquirePIDLock(cfg.Paths.AppDir)
//	if err != nil {
//	    return err
//	}
//	defer lock.Release()
//
// # PID File Format
//
// The PID file contains a single line with the process ID as a decimal integer.
//
// # Platform Support
//
// IsProcessRunning, StopProcess and StopChannel have per-OS implementations in
// daemon_unix.go and daemon_windows.go.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"

	"github.com/tinker495/associate/internal/fileutil"
)

const (
	pidFileName  = "associate.pid"
	lockFileName = pidFileName + ".lock"
)

// ErrAlreadyRunning is returned when another process holds the PID lock.
var ErrAlreadyRunning = errors.New("associate is already running")

// PIDLock is held by the serving process for as long as it runs.
type PIDLock struct {
	dir  string
	lock *flock.Flock
}

// AcquirePIDLock takes the directory lock and records the current PID.
func AcquirePIDLock(dir string) (*PIDLock, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	fl := flock.New(filepath.Join(dir, lockFileName))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		pid, _ := ReadPIDFile(dir)
		if pid > 0 {
			return nil, fmt.Errorf("%w (PID %d)", ErrAlreadyRunning, pid)
		}
		return nil, ErrAlreadyRunning
	}

	pid := []byte(strconv.Itoa(os.Getpid()) + "\n")
	if err := fileutil.WriteFileAtomic(filepath.Join(dir, pidFileName), pid, 0644); err != nil {
		_ = fl.Unlock()
		return nil, fmt.Errorf("failed to write PID file: %w", err)
	}

	return &PIDLock{dir: dir, lock: fl}, nil
}

// Release removes the PID file and drops the lock.
func (l *PIDLock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	removeErr := os.Remove(filepath.Join(l.dir, pidFileName))
	if removeErr != nil && os.IsNotExist(removeErr) {
		removeErr = nil
	}
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	l.lock = nil
	if removeErr != nil {
		return fmt.Errorf("failed to remove PID file: %w", removeErr)
	}
	return nil
}

// ReadPIDFile reads the process ID recorded in dir.
//
// Return values:
//   - (0, nil):     no PID file exists
//   - (pid, nil):   the file holds a valid process ID
//   - (0, error):   the file exists but is unreadable or corrupt
//
// It does not check whether the process is alive; see GetRunningPID.
func ReadPIDFile(dir string) (int, error) {
	data, err := os.ReadFile(filepath.Join(dir, pidFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in file: %w", err)
	}
	return pid, nil
}

// RemovePIDFile removes a PID file left behind by a process that is gone.
func RemovePIDFile(dir string) error {
	if err := os.Remove(filepath.Join(dir, pidFileName)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// GetRunningPID returns the PID of the serving process, or 0 if none is
// running. Stale PID files are cleaned up.
func GetRunningPID(dir string) (int, error) {
	pid, err := ReadPIDFile(dir)
	if err != nil {
		return 0, err
	}
	if pid == 0 {
		return 0, nil
	}

	if !IsProcessRunning(pid) {
		_ = RemovePIDFile(dir)
		return 0, nil
	}
	return pid, nil
}
