// SPDX-License-Identifier: MPL-2.0

package device

import (
	"context"
	"fmt"

	"mvdan.cc/sh/v3/syntax"
)

type (
	// Port is the typed command vocabulary the mod engine relies on.
	Port interface {
		// EnsureDir creates dir and its parents. Idempotent.
		EnsureDir(ctx context.Context, dir string) error
		// List returns the manifest file names directly under dir.
		List(ctx context.Context, dir string) ([]string, error)
		// Read returns the contents of the remote file at path.
		Read(ctx context.Context, path string) ([]byte, error)
		// Delete removes the remote file at path. Deleting a missing file is
		// not an error.
		Delete(ctx context.Context, path string) error
		// Push copies a local file to the remote path.
		Push(ctx context.Context, local, remote string) error
	}

	// ShellPort implements Port on top of a line-oriented Shell using the
	// mkdir/ls/cat/rm vocabulary.
	ShellPort struct {
		sh Shell
	}
)

// NewPort wraps sh in a typed Port.
func NewPort(sh Shell) *ShellPort {
	return &ShellPort{sh: sh}
}

// Shell returns the underlying transport.
func (p *ShellPort) Shell() Shell { return p.sh }

// EnsureDir runs `mkdir -p <dir>`.
func (p *ShellPort) EnsureDir(ctx context.Context, dir string) error {
	_, err := p.run(ctx, "mkdir", "-p", dir)
	return err
}

// List runs `ls -R <dir>` and parses the output with ParseListing.
func (p *ShellPort) List(ctx context.Context, dir string) ([]string, error) {
	out, err := p.run(ctx, "ls", "-R", dir)
	if err != nil {
		return nil, err
	}
	return ParseListing(out), nil
}

// Read runs `cat <path>`.
func (p *ShellPort) Read(ctx context.Context, path string) ([]byte, error) {
	out, err := p.run(ctx, "cat", path)
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// Delete runs `rm -f <path>`.
func (p *ShellPort) Delete(ctx context.Context, path string) error {
	_, err := p.run(ctx, "rm", "-f", path)
	return err
}

// Push delegates to the transport.
func (p *ShellPort) Push(ctx context.Context, local, remote string) error {
	return p.sh.Push(ctx, local, remote)
}

func (p *ShellPort) run(ctx context.Context, name string, args ...string) (string, error) {
	line, err := CommandLine(name, args...)
	if err != nil {
		return "", err
	}
	return p.sh.Run(ctx, line)
}

// CommandLine joins name and args into one POSIX shell line, quoting every
// argument that needs it.
func CommandLine(name string, args ...string) (string, error) {
	line := name
	for _, arg := range args {
		q, err := Quote(arg)
		if err != nil {
			return "", err
		}
		line += " " + q
	}
	return line, nil
}

// Quote renders s as a single POSIX shell word.
func Quote(s string) (string, error) {
	q, err := syntax.Quote(s, syntax.LangPOSIX)
	if err != nil {
		return "", fmt.Errorf("cannot quote argument %q: %w", s, err)
	}
	return q, nil
}
