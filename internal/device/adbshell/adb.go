// SPDX-License-Identifier: MPL-2.0

// Package adbshell is the adb transport: command lines run through
// `adb shell` and files are copied with `adb push`.
package adbshell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/modctl/modctl/internal/device"
)

const (
	// DefaultBinary is looked up on PATH when no explicit binary is configured.
	DefaultBinary = "adb"

	defaultAttempts = 3
	defaultBackoff  = 500 * time.Millisecond
)

// ErrBinaryNotFound is returned by New when adb cannot be located.
var ErrBinaryNotFound = errors.New("adb binary not found")

// transientMarkers are adb client messages emitted before the command ever
// reached the device, so retrying cannot repeat a side effect.
var transientMarkers = []string{
	"device offline",
	"device still authorizing",
	"no devices/emulators found",
	"protocol fault",
}

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// This allows injection of mock implementations for testing.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// Option configures a Shell.
	Option func(*Shell)

	// Shell implements device.Shell over the adb client binary.
	Shell struct {
		binary      string
		resolved    bool
		serial      string
		execCommand ExecCommandFunc
		attempts    int
		backoff     time.Duration
	}
)

// WithBinary uses path as the adb binary without a PATH lookup.
func WithBinary(path string) Option {
	return func(s *Shell) {
		s.binary = path
		s.resolved = true
	}
}

// WithSerial targets a specific device (`adb -s <serial>`).
func WithSerial(serial string) Option {
	return func(s *Shell) { s.serial = serial }
}

// WithExecCommand overrides process creation.
func WithExecCommand(fn ExecCommandFunc) Option {
	return func(s *Shell) { s.execCommand = fn }
}

// WithRetry sets how often a transient adb failure is retried.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(s *Shell) {
		s.attempts = attempts
		s.backoff = backoff
	}
}

// New creates an adb transport. Unless WithBinary is given, adb is resolved
// on PATH.
func New(opts ...Option) (*Shell, error) {
	s := &Shell{
		binary:      DefaultBinary,
		execCommand: exec.CommandContext,
		attempts:    defaultAttempts,
		backoff:     defaultBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}

	if !s.resolved {
		path, err := exec.LookPath(s.binary)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBinaryNotFound, err)
		}
		s.binary = path
	}
	return s, nil
}

// Run executes line with `adb shell`.
func (s *Shell) Run(ctx context.Context, line string) (string, error) {
	return s.exec(ctx, line, "shell", line)
}

// Push copies local to remote with `adb push`. adb creates missing parent
// directories on the device.
func (s *Shell) Push(ctx context.Context, local, remote string) error {
	_, err := s.exec(ctx, "push "+local+" "+remote, "push", local, remote)
	return err
}

// Binary returns the resolved adb path.
func (s *Shell) Binary() string { return s.binary }

func (s *Shell) exec(ctx context.Context, label string, args ...string) (string, error) {
	if s.serial != "" {
		args = append([]string{"-s", s.serial}, args...)
	}

	var out string
	err := device.RetryWithBackoff(ctx, s.attempts, s.backoff, func(int) (bool, error) {
		var stdout, stderr bytes.Buffer
		cmd := s.execCommand(ctx, s.binary, args...)
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			combined := stderr.String() + stdout.String()
			return isTransient(combined), &device.CommandError{Line: label, Output: combined, Err: err}
		}
		out = stdout.String()
		return false, nil
	})
	return out, err
}

func isTransient(output string) bool {
	for _, marker := range transientMarkers {
		if strings.Contains(output, marker) {
			return true
		}
	}
	return false
}
