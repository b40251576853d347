// SPDX-License-Identifier: MPL-2.0

//go:build windows

package sshserver

import (
	"errors"
	"os"
	"os/exec"
)

// startPty is unsupported: the emulator only serves command sessions on Windows.
func startPty(*exec.Cmd) (*os.File, error) {
	return nil, errors.New("interactive sessions are not supported on windows")
}

func setWinsize(*os.File, int, int) {}
