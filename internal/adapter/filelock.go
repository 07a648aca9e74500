package adapter

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"github.com/skillspkg/spm/internal/port"
)

// FlockLock implements port.FileLock using a real filesystem advisory lock
// (flock(2) on Unix), guarding concurrent Manager instances from racing on
// the device manifest and catalog clone (§5). An in-process mutex makes
// goroutines sharing one FlockLock wait for each other as well.
type FlockLock struct {
	mu    sync.Mutex
	inner *flock.Flock
}

// NewFlockLock creates a lock at path. No file mode is passed to flock.New,
// so the lock file is created with gofrs/flock's default mode, not 0777.
func NewFlockLock(path string) *FlockLock {
	return &FlockLock{inner: flock.New(path)}
}

var _ port.FileLock = (*FlockLock)(nil)

// Lock creates the lock file's parent directory if needed, then blocks
// until both the in-process mutex and the file lock are held.
func (l *FlockLock) Lock() error {
	l.mu.Lock()
	if err := os.MkdirAll(filepath.Dir(l.inner.Path()), 0o755); err != nil {
		l.mu.Unlock()
		return err
	}
	if err := l.inner.Lock(); err != nil {
		l.mu.Unlock()
		return err
	}
	return nil
}

func (l *FlockLock) Unlock() error {
	err := l.inner.Unlock()
	l.mu.Unlock()
	return err
}
