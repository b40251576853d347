// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package sshserver

import (
	"os"
	"os/exec"

	"github.com/creack/pty"
)

// startPty starts cmd attached to a new pseudo-terminal.
func startPty(cmd *exec.Cmd) (*os.File, error) {
	return pty.Start(cmd)
}

// setWinsize resizes the PTY; failures are ignored because the session
// keeps working at the old size.
func setWinsize(f *os.File, width, height int) {
	_ = pty.Setsize(f, &pty.Winsize{Rows: uint16(height), Cols: uint16(width)}) //nolint:gosec // Terminal sizes fit in uint16
}
