package lock

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// ErrHeld is returned when another live process already holds the lock file.
var ErrHeld = errors.New("lock held by another process")

// Lock is a pid-file guard preventing two instances from sharing one ledger
// and download directory.
type Lock struct {
	path string
}

// Acquire writes the current pid to path. A lock file left behind by a dead
// process is reclaimed; a file owned by a live process fails with ErrHeld.
func Acquire(path string) (*Lock, error) {
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			_, werr := fmt.Fprintf(f, "%d\n", os.Getpid())
			cerr := f.Close()
			if werr != nil || cerr != nil {
				os.Remove(path)
				return nil, fmt.Errorf("failed to write lock file: %w", errors.Join(werr, cerr))
			}
			return &Lock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to create lock file: %w", err)
		}

		pid, perr := readPid(path)
		if perr == nil && processAlive(pid) {
			return nil, fmt.Errorf("%w (pid %d)", ErrHeld, pid)
		}

		slog.Warn("Reclaiming stale lock file", "path", path, "pid", pid)
		if rerr := os.Remove(path); rerr != nil && !os.IsNotExist(rerr) {
			return nil, fmt.Errorf("failed to remove stale lock file: %w", rerr)
		}
	}

	return nil, fmt.Errorf("failed to acquire lock file %s", path)
}

// Release removes the lock file. Safe to call even if the file is already
// gone.
func (l *Lock) Release() {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to remove lock file", "path", l.path, "error", err)
	}
}

func readPid(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// processAlive probes a pid with signal 0. An EPERM answer still means the
// process exists.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}
