// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers shared by the package tests: an
// in-memory device Port, zip archive builders and Must* wrappers that fail
// the test instead of returning errors.
package testutil
