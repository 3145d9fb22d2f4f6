package resolve

import (
	"os"
	"path/filepath"

	flock "github.com/theckman/go-flock"
	"github.com/pkg/errors"
)

// CacheLockMode distinguishes the two lock modes of spec.md §5: Shared
// (multiple concurrent readers) and Exclusive (a single writer mutating the
// on-disk index or extracting a crate).
type CacheLockMode uint8

const (
	// LockShared permits multiple concurrent holders.
	LockShared CacheLockMode = iota
	// LockExclusive permits exactly one holder.
	LockExclusive
)

// CacheLock is the advisory lock over the registry's on-disk cache
// (index + downloaded tarballs), held for the duration of a resolve, per
// spec.md §5. It wraps github.com/theckman/go-flock's sync.Locker-shaped
// Flock, which the teacher vendors but never wires to anything in the
// retrieved snapshot — DESIGN.md gives it this home.
type CacheLock struct {
	fl   *flock.Flock
	mode CacheLockMode
}

// AcquireCacheLock takes the cache lock for cacheDir in the given mode,
// creating cacheDir if needed, and blocks until the lock is acquired. When
// skipOnNFS is set (for filesystems such as NFS, where flock's underlying
// syscall does not work reliably), a failure to take the lock is ignored and
// a no-op lock is returned; the filesystem type is not detected.
func AcquireCacheLock(cacheDir string, mode CacheLockMode, skipOnNFS bool) (*CacheLock, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create cache directory %s", cacheDir)
	}
	path := filepath.Join(cacheDir, ".cargo-core-lock")
	fl := flock.NewFlock(path)

	var err error
	if mode == LockExclusive {
		err = fl.Lock()
	} else {
		err = fl.RLock()
	}
	if err != nil {
		if skipOnNFS {
			return &CacheLock{fl: nil, mode: mode}, nil
		}
		return nil, errors.Wrapf(err, "failed to acquire %v lock on %s", mode, path)
	}
	return &CacheLock{fl: fl, mode: mode}, nil
}

// Release gives up the lock. Safe to call on a lock that was skipped for
// NFS (a no-op in that case).
func (l *CacheLock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return errors.Wrap(l.fl.Unlock(), "failed to release cache lock")
}

// Escalate upgrades a Shared lock to Exclusive, used when the Registry
// Facade needs to mutate the on-disk index or extract a crate mid-resolve.
func (l *CacheLock) Escalate() error {
	if l == nil || l.fl == nil || l.mode == LockExclusive {
		return nil
	}
	if err := l.fl.Unlock(); err != nil {
		return errors.Wrap(err, "failed to release shared lock before escalating")
	}
	if err := l.fl.Lock(); err != nil {
		return errors.Wrap(err, "failed to escalate cache lock to exclusive")
	}
	l.mode = LockExclusive
	return nil
}

func (m CacheLockMode) String() string {
	if m == LockExclusive {
		return "exclusive"
	}
	return "shared"
}
