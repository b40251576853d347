// SPDX-License-Identifier: MPL-2.0

// Package vshell is the local transport: a host directory plays the device
// root and command lines are interpreted in-process by mvdan/sh. The few
// commands the mod engine needs (mkdir, ls, cat, rm) are implemented here and
// confined to the root; any other external command fails with status 127.
package vshell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/modctl/modctl/internal/device"
)

// exitNotFound is the POSIX status for an unknown command.
const exitNotFound = 127

// ErrInvalidRoot is returned by New when the root cannot be used.
var ErrInvalidRoot = errors.New("invalid device root")

// Shell implements device.Shell on a local directory.
type Shell struct {
	root string
}

// New returns a Shell rooted at root, creating the directory if needed.
func New(root string) (*Shell, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidRoot)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRoot, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRoot, err)
	}
	return &Shell{root: abs}, nil
}

// Root returns the absolute host directory backing the device.
func (s *Shell) Root() string { return s.root }

// Run interprets line and returns what it wrote to stdout.
func (s *Shell) Run(ctx context.Context, line string) (string, error) {
	var stdout, stderr bytes.Buffer
	if err := s.Exec(ctx, line, nil, &stdout, &stderr); err != nil {
		return "", &device.CommandError{Line: line, Output: stderr.String(), Err: err}
	}
	return stdout.String(), nil
}

// Exec interprets line with the given standard streams. A non-zero exit is
// returned as interp.ExitStatus.
func (s *Shell) Exec(ctx context.Context, line string, stdin io.Reader, stdout, stderr io.Writer) error {
	prog, err := syntax.NewParser().Parse(strings.NewReader(line), "")
	if err != nil {
		return fmt.Errorf("failed to parse command: %w", err)
	}

	runner, err := interp.New(
		interp.Dir(s.root),
		interp.Env(expand.ListEnviron("HOME=/", "PATH=/bin")),
		interp.StdIO(stdin, stdout, stderr),
		interp.ExecHandlers(s.execHandler),
		interp.OpenHandler(s.openHandler),
	)
	if err != nil {
		return fmt.Errorf("failed to create interpreter: %w", err)
	}

	return runner.Run(ctx, prog)
}

// Push copies local to remote, creating parent directories.
func (s *Shell) Push(ctx context.Context, local, remote string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("open %s: %w", local, err)
	}
	defer src.Close()

	dst := s.resolve(s.root, remote)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return &device.CommandError{Line: "push " + remote, Err: err}
	}
	out, err := os.Create(dst)
	if err != nil {
		return &device.CommandError{Line: "push " + remote, Err: err}
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close() // Best-effort close on error path
		return &device.CommandError{Line: "push " + remote, Err: err}
	}
	return out.Close()
}

// resolve maps a device path to a host path inside the root. Relative paths
// are taken from the interpreter's current directory; nothing can climb
// above the root.
func (s *Shell) resolve(cwd, p string) string {
	rel, err := filepath.Rel(s.root, cwd)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		rel = "."
	}
	p = filepath.ToSlash(p)
	if !path.IsAbs(p) {
		p = path.Join("/", filepath.ToSlash(rel), p)
	}
	clean := path.Clean("/" + p)
	return filepath.Join(s.root, filepath.FromSlash(clean))
}

func (s *Shell) openHandler(ctx context.Context, p string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	if p == "/dev/null" {
		return os.OpenFile(os.DevNull, flag, perm)
	}
	hc := interp.HandlerCtx(ctx)
	return os.OpenFile(s.resolve(hc.Dir, p), flag, perm) //nolint:gosec // confined by resolve
}

func (s *Shell) execHandler(_ interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(ctx context.Context, args []string) error {
		if len(args) == 0 {
			return nil
		}
		hc := interp.HandlerCtx(ctx)
		env := &cmdEnv{shell: s, dir: hc.Dir, stdin: hc.Stdin, stdout: hc.Stdout, stderr: hc.Stderr}

		cmd, ok := builtins[args[0]]
		if !ok {
			fmt.Fprintf(hc.Stderr, "%s: command not found\n", args[0])
			return interp.NewExitStatus(exitNotFound)
		}
		return cmd(ctx, env, args[1:])
	}
}
