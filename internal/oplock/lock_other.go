// SPDX-License-Identifier: MPL-2.0

//go:build !linux

package oplock

import "context"

// Lock is the non-Linux stub. Release is a no-op.
type Lock struct{}

// Acquire always returns ErrUnavailable; callers fall back to their
// in-process queue.
func Acquire(context.Context, string) (*Lock, error) {
	return nil, ErrUnavailable
}

// Release is a no-op on non-Linux platforms.
func (l *Lock) Release() {}
