package watcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrAlreadyRunning is returned when another live process holds the lock.
var ErrAlreadyRunning = errors.New("watcher already running")

// AcquireLock writes the current PID to pidFile. It fails with
// ErrAlreadyRunning when the file names a live process and replaces it when
// the process is gone. The returned release func removes the file if it
// still holds this process's PID.
func AcquireLock(pidFile string) (func() error, error) {
	running, pid, err := IsRunning(pidFile)
	if err != nil {
		return nil, fmt.Errorf("failed to check watcher lock: %w", err)
	}
	if running {
		return nil, fmt.Errorf("%w (pid %d, lock %s)", ErrAlreadyRunning, pid, pidFile)
	}

	if err := os.MkdirAll(filepath.Dir(pidFile), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	f, err := os.OpenFile(pidFile, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w (lock %s)", ErrAlreadyRunning, pidFile)
		}
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}

	self := os.Getpid()
	if _, err := fmt.Fprintf(f, "%d\n", self); err != nil {
		f.Close()
		os.Remove(pidFile)
		return nil, fmt.Errorf("failed to write lock file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(pidFile)
		return nil, fmt.Errorf("failed to write lock file: %w", err)
	}

	release := func() error {
		owner, err := readPID(pidFile)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("failed to read lock file: %w", err)
		}
		if owner != self {
			return nil
		}
		if err := os.Remove(pidFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove lock file: %w", err)
		}
		return nil
	}
	return release, nil
}

// IsRunning reports whether pidFile names a live process. A stale or
// unparsable file is removed.
func IsRunning(pidFile string) (bool, int, error) {
	pid, err := readPID(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return false, 0, nil
		}
		var numErr *strconv.NumError
		if errors.As(err, &numErr) {
			os.Remove(pidFile)
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("failed to read PID file: %w", err)
	}
	if pid <= 0 {
		os.Remove(pidFile)
		return false, 0, nil
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false, 0, nil
	}

	// Signal 0 checks existence without delivering anything. EPERM means
	// the process exists but belongs to another user.
	err = process.Signal(syscall.Signal(0))
	if err != nil && !errors.Is(err, syscall.EPERM) {
		os.Remove(pidFile)
		return false, 0, nil
	}

	return true, pid, nil
}

func readPID(pidFile string) (int, error) {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}
