// SPDX-License-Identifier: MPL-2.0

//go:build linux

package oplock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"
)

// pollInterval is how often a blocked Acquire retries the non-blocking flock.
const pollInterval = 50 * time.Millisecond

// Lock is a held exclusive flock. The zero-byte lock file is harmless if
// orphaned: the kernel releases the flock when the fd is closed, including
// on process crash.
type Lock struct {
	file *os.File
}

// Acquire opens (or creates) path and blocks until the exclusive flock is
// held or ctx is done.
func Acquire(ctx context.Context, path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}

	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return &Lock{file: f}, nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EINTR) {
			_ = f.Close() // Best-effort cleanup on error path
			return nil, fmt.Errorf("flock %s: %w", path, err)
		}

		select {
		case <-ctx.Done():
			_ = f.Close() // Best-effort cleanup on error path
			return nil, fmt.Errorf("waiting for device lock %s: %w", path, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

// Release unlocks the flock and closes the file descriptor. It is safe to call
// multiple times; subsequent calls are no-ops.
func (l *Lock) Release() {
	if l == nil || l.file == nil {
		return
	}
	// LOCK_UN before Close for explicitness; Close also releases the flock.
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		log.Debug("flock unlock failed", "err", err)
	}
	if err := l.file.Close(); err != nil {
		log.Debug("lock file close failed", "err", err)
	}
	l.file = nil
}
