// SPDX-License-Identifier: MPL-2.0

// Package oplock serializes mod operations across modctl processes that
// target the same device, using an exclusive flock on a per-device file.
// Where flock is unavailable, Acquire returns ErrUnavailable and callers rely
// on their in-process queue alone.
package oplock
