// Package lockfile keeps two tally processes from draining the same queue.
// The lock is a file holding "pid|executable"; a lock whose process is gone
// is treated as stale and taken over.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	ps "github.com/mitchellh/go-ps"

	"github.com/julianstephens/tally/internal/logger"
)

var (
	// ErrLocked is returned when another live process holds the lock
	ErrLocked = errors.New("lock is held by another process")

	findProcessFunc = ps.FindProcess
	getpid          = os.Getpid
)

// Lock is a held lockfile
type Lock struct {
	path string
	pid  int
}

// Acquire takes the lock at path, replacing it when its owner is no longer running
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	pid := getpid()
	content := fmt.Sprintf("%d|%s", pid, executableName(pid))

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
		if err == nil {
			_, werr := f.WriteString(content)
			cerr := f.Close()
			if werr != nil || cerr != nil {
				_ = os.Remove(path)
				return nil, fmt.Errorf("failed to write lockfile: %w", errors.Join(werr, cerr))
			}
			return &Lock{path: path, pid: pid}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("failed to create lockfile: %w", err)
		}

		owner, err := validateOwner(path)
		if err == nil {
			return nil, fmt.Errorf("%w (pid %d)", ErrLocked, owner)
		}
		logger.Warn("Removing stale lockfile", "path", path, "reason", err)
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to remove stale lockfile: %w", err)
		}
	}
	return nil, ErrLocked
}

// Release removes the lockfile if this process still owns it
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	content, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read lockfile: %w", err)
	}
	pid, _, err := parse(string(content))
	if err != nil || pid != l.pid {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove lockfile: %w", err)
	}
	return nil
}

// validateOwner returns the pid of a live lock owner, or an error explaining
// why the lockfile is stale
func validateOwner(path string) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, executable, err := parse(string(content))
	if err != nil {
		return 0, err
	}

	process, err := findProcessFunc(pid)
	if err != nil || process == nil {
		return 0, fmt.Errorf("process %d not running", pid)
	}
	if executable != "" && !strings.HasPrefix(process.Executable(), executable) {
		return 0, fmt.Errorf("process with PID %d is not %s (is %s)", pid, executable, process.Executable())
	}
	return pid, nil
}

func parse(content string) (int, string, error) {
	parts := strings.SplitN(strings.TrimSpace(content), "|", 2)
	if len(parts) != 2 {
		return 0, "", errors.New("lockfile is malformed")
	}
	pid, err := strconv.Atoi(parts[0])
	if err != nil || pid <= 0 {
		return 0, "", errors.New("invalid process ID in lockfile")
	}
	return pid, parts[1], nil
}

func executableName(pid int) string {
	if p, err := findProcessFunc(pid); err == nil && p != nil {
		return p.Executable()
	}
	return filepath.Base(os.Args[0])
}
