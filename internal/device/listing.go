// SPDX-License-Identifier: MPL-2.0

package device

import (
	"strings"
)

// ManifestExt is the only extension accepted by ParseListing.
const ManifestExt = ".json"

// ParseListing extracts manifest file names from the raw output of
// `ls -R <dir>`.
//
// Recursive listings echo the directory as a "<dir>:" header and end with a
// trailing line, so exactly the first and last lines are dropped after CR
// removal (adb emits CRLF). What remains is filtered rather than trusted: the
// scan stops at the first blank line, which opens a nested directory
// section, and only bare "<name>.json" entries are kept.
func ParseListing(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r", "")
	lines := strings.Split(raw, "\n")
	if len(lines) <= 2 {
		return nil
	}

	var entries []string
	for _, line := range lines[1 : len(lines)-1] {
		if line == "" {
			break
		}
		if !isManifestEntry(line) {
			continue
		}
		entries = append(entries, line)
	}
	return entries
}

func isManifestEntry(name string) bool {
	switch {
	case strings.Contains(name, "/"):
		return false
	case strings.HasSuffix(name, ":"):
		return false
	case !strings.HasSuffix(name, ManifestExt):
		return false
	case name == ManifestExt:
		return false
	}
	return true
}
