// SPDX-License-Identifier: MPL-2.0

// Package device is the remote command port used by the mod engine.
//
// A Shell is the raw line-oriented transport (adb, ssh or the local virtual
// shell). Port layers a typed vocabulary on top of it: ensure a directory,
// list manifests, read a file, delete a file and push a local file. Callers
// never build shell text themselves; every argument is quoted by the port.
package device
