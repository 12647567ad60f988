// Package lock guards the daemon against a second instance by holding an
// exclusive flock(2) on a well-known path for the lifetime of the process.
// The kernel drops the lock when the owning process exits, however it exits.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

// DefaultPath is where the daemon keeps its lock file.
const DefaultPath = "/tmp/inkd.lock"

// ErrAlreadyRunning reports that another process holds the lock.
var ErrAlreadyRunning = errors.New("inkd is already running")

// Lock is an acquired process lock.
type Lock struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// Acquire takes the exclusive lock at path without blocking. The lock is
// scoped to the opened file description, so a second Acquire fails even from
// the same process.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close() //nolint:errcheck
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%s: %w", path, ErrAlreadyRunning)
		}
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if err := writePID(f); err != nil {
		unix.Flock(int(f.Fd()), unix.LOCK_UN) //nolint:errcheck
		f.Close()                             //nolint:errcheck
		return nil, fmt.Errorf("write lock file: %w", err)
	}
	return &Lock{path: path, file: f}, nil
}

func writePID(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	_, err := f.WriteAt([]byte(fmt.Sprintf("%d\n", os.Getpid())), 0)
	return err
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release drops the lock. It is safe to call more than once; the file itself
// is left in place for the next instance to reuse.
func (l *Lock) Release() error {
	l.mu.Lock()
	f := l.file
	l.file = nil
	l.mu.Unlock()
	if f == nil {
		return nil
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_UN); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return f.Close()
}
