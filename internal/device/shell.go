// SPDX-License-Identifier: MPL-2.0

package device

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
)

// ErrCommandFailed is the sentinel wrapped by CommandError.
var ErrCommandFailed = errors.New("remote command failed")

type (
	// Shell executes command lines on the device and pushes local files to it.
	// Implementations must be safe for sequential use from one goroutine; the
	// mod manager never issues two commands concurrently.
	Shell interface {
		// Run executes line and returns its combined standard output.
		Run(ctx context.Context, line string) (string, error)
		// Push copies the local file at local to the remote path remote,
		// creating parent directories as needed.
		Push(ctx context.Context, local, remote string) error
	}

	// CommandError reports a failed remote command. Output carries whatever
	// the transport captured, which is usually the device's error text.
	CommandError struct {
		Line   string
		Output string
		Err    error
	}
)

// Error implements the error interface.
func (e *CommandError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("remote command %q failed: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("remote command %q failed: %v: %s", e.Line, e.Err, out)
}

// Unwrap returns the underlying cause.
func (e *CommandError) Unwrap() error { return e.Err }

// Is reports ErrCommandFailed.
func (e *CommandError) Is(target error) bool { return target == ErrCommandFailed }

// Detach runs line in the background and discards its output. Failures are
// logged, never returned. The returned channel is closed once the command
// has finished so tests and the CLI can wait for it when they need to.
func Detach(ctx context.Context, sh Shell, line string, logger *log.Logger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := sh.Run(ctx, line); err != nil && logger != nil {
			logger.Warn("detached command failed", "line", line, "err", err)
		}
	}()
	return done
}
