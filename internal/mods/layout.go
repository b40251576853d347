// SPDX-License-Identifier: MPL-2.0

package mods

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/modctl/modctl/pkg/modmanifest"
)

const (
	// AppIDPlaceholder is replaced by the target application id in layout paths.
	AppIDPlaceholder = "{app-id}"

	// DefaultManifestsDir holds one <id>.json per installed mod.
	DefaultManifestsDir = "sdcard/QuestPatcher/" + AppIDPlaceholder + "/installedMods"
	// DefaultModsDir receives modFiles.
	DefaultModsDir = "sdcard/Android/data/" + AppIDPlaceholder + "/files/mods"
	// DefaultLibsDir receives libraryFiles.
	DefaultLibsDir = "sdcard/Android/data/" + AppIDPlaceholder + "/files/libs"
)

// ErrInvalidLayout is the sentinel error wrapped by InvalidLayoutError.
var ErrInvalidLayout = errors.New("invalid remote layout")

type (
	// Layout is where mods live on the device.
	Layout struct {
		ManifestsDir string
		ModsDir      string
		LibsDir      string
	}

	// InvalidLayoutError names the layout directory that cannot be used.
	InvalidLayoutError struct {
		Field  string
		Value  string
		Reason string
	}
)

// Error implements the error interface.
func (e *InvalidLayoutError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// Unwrap returns ErrInvalidLayout for errors.Is compatibility.
func (e *InvalidLayoutError) Unwrap() error { return ErrInvalidLayout }

// DefaultLayout returns the stock layout for appID.
func DefaultLayout(appID string) Layout {
	return Layout{
		ManifestsDir: DefaultManifestsDir,
		ModsDir:      DefaultModsDir,
		LibsDir:      DefaultLibsDir,
	}.Expand(appID)
}

// Expand substitutes appID for every AppIDPlaceholder.
func (l Layout) Expand(appID string) Layout {
	sub := func(s string) string { return strings.ReplaceAll(s, AppIDPlaceholder, appID) }
	return Layout{
		ManifestsDir: sub(l.ManifestsDir),
		ModsDir:      sub(l.ModsDir),
		LibsDir:      sub(l.LibsDir),
	}
}

// Validate checks that every directory is set and fully expanded.
func (l Layout) Validate() error {
	var errs []error
	for _, f := range []struct{ name, value string }{
		{"manifests directory", l.ManifestsDir},
		{"mods directory", l.ModsDir},
		{"libraries directory", l.LibsDir},
	} {
		switch {
		case strings.TrimSpace(f.value) == "":
			errs = append(errs, &InvalidLayoutError{Field: f.name, Value: f.value, Reason: "must not be empty"})
		case strings.Contains(f.value, AppIDPlaceholder):
			errs = append(errs, &InvalidLayoutError{Field: f.name, Value: f.value, Reason: "contains an unexpanded " + AppIDPlaceholder})
		case strings.ContainsRune(f.value, '\x00'):
			errs = append(errs, &InvalidLayoutError{Field: f.name, Value: f.value, Reason: "contains null byte"})
		}
	}
	return errors.Join(errs...)
}

// Dirs returns the three directories in the order Discovery ensures them.
func (l Layout) Dirs() []string {
	return []string{l.ManifestsDir, l.ModsDir, l.LibsDir}
}

// ManifestPath is where the manifest of mod id is persisted.
func (l Layout) ManifestPath(id string) string {
	return path.Join(l.ManifestsDir, id+modmanifest.PersistedExt)
}

// ModPath is the remote location of a declared mod file.
func (l Layout) ModPath(rel string) string {
	return path.Join(l.ModsDir, rel)
}

// LibPath is the remote location of a declared library file.
func (l Layout) LibPath(rel string) string {
	return path.Join(l.LibsDir, rel)
}
