// Package lock provides per-port file locking.
//
// Two kernels opening the same serial device corrupt each other's raw-REPL
// framing in ways that look like board crashes. An advisory lock file per
// port turns that into an immediate, explainable error instead.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// errLocked is reported by lockFile when another process holds the lock.
var errLocked = errors.New("already locked")

// PortLock represents an advisory lock on a serial port.
type PortLock struct {
	path string
	file *os.File
}

// Dir returns the directory holding dinghy's lock files.
func Dir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locate cache directory: %w", err)
	}
	return filepath.Join(base, "dinghy", "locks"), nil
}

// ForPort creates a lock for the given serial port device.
func ForPort(port string) (*PortLock, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	name := strings.NewReplacer("/", "-", "\\", "-", ":", "-").Replace(strings.TrimPrefix(port, "/"))
	return &PortLock{path: filepath.Join(dir, name+".lock")}, nil
}

// Path returns the lock file path.
func (l *PortLock) Path() string {
	return l.path
}

// Acquire attempts to acquire the lock.
// Returns an error naming the lock file if another process holds it.
func (l *PortLock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}

	if err := lockFile(f); err != nil {
		f.Close()
		l.file = nil
		if errors.Is(err, errLocked) {
			return fmt.Errorf("port is in use by another kernel (lock held at %s)", l.path)
		}
		return fmt.Errorf("acquire lock: %w", err)
	}

	// Write PID to lock file for debugging
	f.Truncate(0)
	f.Seek(0, 0)
	fmt.Fprintf(f, "%d\n", os.Getpid())

	l.file = f
	return nil
}

// Release releases the lock and removes the lock file.
func (l *PortLock) Release() error {
	if l.file == nil {
		return nil
	}

	if err := unlockFile(l.file); err != nil {
		l.file.Close()
		return fmt.Errorf("release lock: %w", err)
	}

	l.file.Close()
	os.Remove(l.path)
	l.file = nil

	return nil
}

// Stale returns the lock files in Dir that no process currently holds.
// Used by `dinghy doctor` to report leftovers from crashed kernels.
func Stale() ([]string, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read lock directory: %w", err)
	}

	var stale []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".lock") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		f, err := os.OpenFile(path, os.O_RDWR, 0o644)
		if err != nil {
			continue
		}
		if lockFile(f) == nil {
			unlockFile(f)
			stale = append(stale, path)
		}
		f.Close()
	}
	return stale, nil
}
