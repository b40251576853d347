// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/modctl/modctl/internal/issue"
	"github.com/modctl/modctl/internal/mods"
	"github.com/modctl/modctl/pkg/modmanifest"
)

const maxSuggestedIDs = 3

// closestIDs returns the installed ids that fuzzily match id, best first.
func closestIDs(id string, installed []*modmanifest.Manifest) []string {
	ids := make([]string, 0, len(installed))
	for _, m := range installed {
		ids = append(ids, m.ID)
	}

	var out []string
	for _, match := range fuzzy.Find(id, ids) {
		if match.Str == id {
			continue
		}
		out = append(out, match.Str)
		if len(out) == maxSuggestedIDs {
			break
		}
	}
	return out
}

// explainUnknownID classifies err and, for an id that is not installed,
// leads the suggestions with near-miss ids.
func explainUnknownID(err error, id string, installed []*modmanifest.Manifest, operation string) *issue.ActionableError {
	ae := classifyError(err, operation, id)
	if !errors.Is(err, mods.ErrNotInstalled) {
		return ae
	}
	if near := closestIDs(id, installed); len(near) > 0 {
		ae.Suggestions = append([]string{"Did you mean " + strings.Join(near, ", ") + "?"}, ae.Suggestions...)
	}
	return ae
}
