// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"mvdan.cc/sh/v3/interp"
)

// exitInternal is reported when a line could not be run at all.
const exitInternal = 1

// sessionMiddleware routes command sessions to the virtual shell and the
// rest to an interactive host shell.
func (s *Server) sessionMiddleware() wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(sess ssh.Session) {
			if line := sess.RawCommand(); line != "" {
				s.runCommand(sess, line)
				return
			}
			s.runInteractiveShell(sess)
		}
	}
}

// runCommand interprets line with the virtual shell rooted at the device
// root. Session stdin is the command's stdin, which is how pushes arrive.
func (s *Server) runCommand(sess ssh.Session, line string) {
	s.logger.Debug("exec", "user", sess.User(), "line", line)

	err := s.shell.Exec(sess.Context(), line, sess, sess, sess.Stderr())
	var status interp.ExitStatus
	if err != nil && !errors.As(err, &status) {
		_, _ = fmt.Fprintf(sess.Stderr(), "device: %v\n", err)
		s.logger.Warn("command failed", "line", line, "err", err)
	}
	_ = sess.Exit(exitCode(err)) //nolint:errcheck // Terminal operation; error non-critical
}

// exitCode maps an interpreter result to an exit status.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var status interp.ExitStatus
	if errors.As(err, &status) {
		return int(status)
	}
	return exitInternal
}

// runInteractiveShell starts a host shell in the device root on a PTY.
func (s *Server) runInteractiveShell(sess ssh.Session) {
	cmd := exec.CommandContext(sess.Context(), s.cfg.InteractiveShell)
	cmd.Dir = s.shell.Root()
	cmd.Env = append(os.Environ(), sess.Environ()...)

	ptyReq, winCh, isPty := sess.Pty()
	if isPty {
		cmd.Env = append(cmd.Env, "TERM="+ptyReq.Term)
	}

	f, err := startPty(cmd)
	if err != nil {
		_, _ = fmt.Fprintf(sess.Stderr(), "Error starting shell: %v\n", err)
		_ = sess.Exit(exitInternal) //nolint:errcheck // Terminal operation; error non-critical
		return
	}
	defer func() { _ = f.Close() }() // PTY cleanup; error non-critical

	if isPty {
		setWinsize(f, ptyReq.Window.Width, ptyReq.Window.Height)
	}
	go func() {
		for win := range winCh {
			setWinsize(f, win.Width, win.Height)
		}
	}()

	go func() {
		_, _ = io.Copy(f, sess) //nolint:errcheck // I/O copy; errors are non-recoverable
	}()
	_, _ = io.Copy(sess, f) //nolint:errcheck // I/O copy; errors are non-recoverable

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			_ = sess.Exit(exitErr.ExitCode()) //nolint:errcheck // Terminal operation; error non-critical
			return
		}
	}
	_ = sess.Exit(0) //nolint:errcheck // Terminal operation; error non-critical
}
