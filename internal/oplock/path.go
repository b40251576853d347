// SPDX-License-Identifier: MPL-2.0

package oplock

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnavailable is returned by Acquire on platforms without flock.
var ErrUnavailable = errors.New("flock not available on this platform")

const lockFilePrefix = "modctl-"

// PathFor returns the lock file for the device identified by key.
// Prefers $XDG_RUNTIME_DIR (per-user tmpfs), falls back to os.TempDir().
func PathFor(key string) string {
	return pathForWith(key, os.Getenv)
}

// pathForWith enables testing without mutating process-global environment state.
func pathForWith(key string, getenv func(string) string) string {
	dir := getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, lockFilePrefix+sanitize(key)+".lock")
}

// sanitize keeps key readable while making it a single safe file name.
func sanitize(key string) string {
	if key == "" {
		return "default"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, key)
}
