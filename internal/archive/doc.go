// SPDX-License-Identifier: MPL-2.0

// Package archive reads and writes the zip archives mods are shipped in.
package archive
