package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFile is the name of the lock held while a run writes into a directory.
const LockFile = ".iamsync.lock"

// ErrLocked indicates another run holds the profile directory.
var ErrLocked = errors.New("profile directory is in use by another run")

// Lock takes an exclusive, non-blocking lock on dir. The returned function
// releases it.
func Lock(dir string) (func() error, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating profile directory: %w", err)
	}

	fl := flock.New(filepath.Join(dir, LockFile))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", dir, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, dir)
	}
	return fl.Unlock, nil
}
