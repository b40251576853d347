// SPDX-License-Identifier: MPL-2.0

// Package sshserver is the modctl device emulator: an SSH server built on
// Wish that behaves like a device for the ssh transport.
//
// Command lines are interpreted by the local virtual shell rooted at a host
// directory, so mkdir, ls, cat and rm (and `cat > file` pushes) work exactly
// as they do for the local transport. Sessions without a command get an
// interactive host shell in that directory. Clients authenticate with a
// shared token sent as the SSH password.
package sshserver
