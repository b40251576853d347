// SPDX-License-Identifier: MPL-2.0

package vshell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/interp"
)

type (
	// cmdEnv is what a builtin sees of the interpreter.
	cmdEnv struct {
		shell  *Shell
		dir    string
		stdin  io.Reader
		stdout io.Writer
		stderr io.Writer
	}

	builtinFunc func(ctx context.Context, env *cmdEnv, args []string) error
)

var builtins = map[string]builtinFunc{
	"mkdir": mkdirCmd,
	"ls":    lsCmd,
	"cat":   catCmd,
	"rm":    rmCmd,
}

// splitFlags separates single-letter flags from operands. "--" ends flags.
func splitFlags(args []string) (flags map[rune]bool, operands []string) {
	flags = make(map[rune]bool)
	for i, arg := range args {
		if arg == "--" {
			return flags, append(operands, args[i+1:]...)
		}
		if len(arg) > 1 && arg[0] == '-' {
			for _, r := range arg[1:] {
				flags[r] = true
			}
			continue
		}
		operands = append(operands, arg)
	}
	return flags, operands
}

func (e *cmdEnv) fail(name, format string, a ...any) error {
	fmt.Fprintf(e.stderr, "%s: %s\n", name, fmt.Sprintf(format, a...))
	return interp.NewExitStatus(1)
}

func mkdirCmd(_ context.Context, env *cmdEnv, args []string) error {
	flags, dirs := splitFlags(args)
	if len(dirs) == 0 {
		return env.fail("mkdir", "missing operand")
	}

	var status error
	for _, d := range dirs {
		host := env.shell.resolve(env.dir, d)
		var err error
		if flags['p'] {
			err = os.MkdirAll(host, 0o755)
		} else {
			err = os.Mkdir(host, 0o755)
		}
		if err != nil {
			status = env.fail("mkdir", "%s: %s", d, describe(err))
		}
	}
	return status
}

func lsCmd(_ context.Context, env *cmdEnv, args []string) error {
	flags, targets := splitFlags(args)
	if len(targets) == 0 {
		targets = []string{"."}
	}

	var status error
	first := true
	for _, target := range targets {
		host := env.shell.resolve(env.dir, target)
		info, err := os.Stat(host)
		if err != nil {
			status = env.fail("ls", "%s: %s", target, describe(err))
			continue
		}
		if !info.IsDir() {
			fmt.Fprintln(env.stdout, target)
			continue
		}
		if flags['R'] {
			if err := listRecursive(env.stdout, target, host, flags['a'], &first); err != nil {
				status = env.fail("ls", "%s: %s", target, describe(err))
			}
			continue
		}
		if len(targets) > 1 {
			if !first {
				fmt.Fprintln(env.stdout)
			}
			fmt.Fprintf(env.stdout, "%s:\n", target)
		}
		first = false
		names, err := readNames(host, flags['a'])
		if err != nil {
			status = env.fail("ls", "%s: %s", target, describe(err))
			continue
		}
		for _, n := range names {
			fmt.Fprintln(env.stdout, n)
		}
	}
	return status
}

// listRecursive mimics `ls -R`: every directory section opens with a
// "<dir>:" header and sections are separated by a blank line.
func listRecursive(w io.Writer, display, host string, all bool, first *bool) error {
	entries, err := os.ReadDir(host)
	if err != nil {
		return err
	}
	if !*first {
		fmt.Fprintln(w)
	}
	*first = false
	fmt.Fprintf(w, "%s:\n", display)

	var subdirs []string
	for _, e := range entries {
		if !all && strings.HasPrefix(e.Name(), ".") {
			continue
		}
		fmt.Fprintln(w, e.Name())
		if e.IsDir() {
			subdirs = append(subdirs, e.Name())
		}
	}
	for _, sub := range subdirs {
		if err := listRecursive(w, path.Join(display, sub), filepath.Join(host, sub), all, first); err != nil {
			return err
		}
	}
	return nil
}

func readNames(host string, all bool) ([]string, error) {
	entries, err := os.ReadDir(host)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !all && strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func catCmd(ctx context.Context, env *cmdEnv, args []string) error {
	_, files := splitFlags(args)
	if len(files) == 0 {
		if env.stdin == nil {
			return nil
		}
		_, err := io.Copy(env.stdout, readerWithContext(ctx, env.stdin))
		return err
	}

	var status error
	for _, f := range files {
		host := env.shell.resolve(env.dir, f)
		data, err := os.ReadFile(host) //nolint:gosec // confined by resolve
		if err != nil {
			status = env.fail("cat", "%s: %s", f, describe(err))
			continue
		}
		if _, err := env.stdout.Write(data); err != nil {
			return err
		}
	}
	return status
}

func rmCmd(_ context.Context, env *cmdEnv, args []string) error {
	flags, files := splitFlags(args)
	force := flags['f']
	recursive := flags['r'] || flags['R']
	if len(files) == 0 {
		if force {
			return nil
		}
		return env.fail("rm", "missing operand")
	}

	var status error
	for _, f := range files {
		host := env.shell.resolve(env.dir, f)
		if host == env.shell.root {
			status = env.fail("rm", "refusing to remove device root")
			continue
		}
		info, err := os.Lstat(host)
		if err != nil {
			if force && errors.Is(err, fs.ErrNotExist) {
				continue
			}
			status = env.fail("rm", "%s: %s", f, describe(err))
			continue
		}
		if info.IsDir() && !recursive {
			status = env.fail("rm", "%s: is a directory", f)
			continue
		}
		if recursive {
			err = os.RemoveAll(host)
		} else {
			err = os.Remove(host)
		}
		if err != nil {
			status = env.fail("rm", "%s: %s", f, describe(err))
		}
	}
	return status
}

// describe renders err the way coreutils does ("No such file or directory").
func describe(err error) string {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "No such file or directory"
	case errors.Is(err, fs.ErrExist):
		return "File exists"
	case errors.Is(err, fs.ErrPermission):
		return "Permission denied"
	}
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return pe.Err.Error()
	}
	return err.Error()
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
