// SPDX-License-Identifier: MPL-2.0

//go:generate easyjson -all manifest.go

package modmanifest

import (
	_ "embed"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jwriter"

	"github.com/modctl/modctl/pkg/cueutil"
)

const (
	// FileName is the manifest file name at the root of a mod archive.
	FileName = "mod.json"

	// PersistedExt is appended to the mod id to name the copy kept on the device.
	PersistedExt = ".json"

	// MaxPathLength bounds a single declared file path.
	MaxPathLength = 4096
)

var (
	//go:embed manifest_schema.cue
	manifestSchema []byte

	// ErrInvalidManifest is the sentinel wrapped by every Parse failure.
	ErrInvalidManifest = errors.New("invalid mod manifest")

	// ErrInvalidFilePath is the sentinel wrapped by InvalidFilePathError.
	ErrInvalidFilePath = errors.New("invalid mod file path")

	// ErrInvalidID is the sentinel wrapped by InvalidIDError.
	ErrInvalidID = errors.New("invalid mod id")
)

type (
	// Manifest is a parsed mod.json. Treat it as immutable once returned by
	// Parse: the registry shares the pointer with every reader.
	Manifest struct {
		ID           string   `json:"id"`
		Name         string   `json:"name"`
		Version      string   `json:"version"`
		GameID       string   `json:"gameId"`
		GameVersion  string   `json:"gameVersion"`
		ModFiles     []string `json:"modFiles"`
		LibraryFiles []string `json:"libraryFiles"`
	}

	// InvalidManifestError describes why a document could not be parsed.
	// Source names the document (an archive's mod.json or a persisted <id>.json).
	InvalidManifestError struct {
		Source string
		Err    error
	}

	// InvalidFilePathError is returned when a declared path is absolute,
	// escapes the archive root or is otherwise unusable on the device.
	InvalidFilePathError struct {
		Field  string
		Index  int
		Path   string
		Reason string
	}

	// InvalidIDError is returned when an id cannot serve as the stem of the
	// persisted <id>.json file name.
	InvalidIDError struct {
		ID     string
		Reason string
	}
)

// Error implements the error interface.
func (e *InvalidManifestError) Error() string {
	return fmt.Sprintf("invalid mod manifest %s: %v", e.Source, e.Err)
}

// Unwrap returns the underlying cause.
func (e *InvalidManifestError) Unwrap() error { return e.Err }

// Is reports ErrInvalidManifest.
func (e *InvalidManifestError) Is(target error) bool { return target == ErrInvalidManifest }

// Error implements the error interface.
func (e *InvalidFilePathError) Error() string {
	return fmt.Sprintf("%s[%d] %q: %s", e.Field, e.Index, e.Path, e.Reason)
}

// Unwrap returns ErrInvalidFilePath for errors.Is compatibility.
func (e *InvalidFilePathError) Unwrap() error { return ErrInvalidFilePath }

// Error implements the error interface.
func (e *InvalidIDError) Error() string {
	return fmt.Sprintf("id %q: %s", e.ID, e.Reason)
}

// Unwrap returns ErrInvalidID for errors.Is compatibility.
func (e *InvalidIDError) Unwrap() error { return ErrInvalidID }

// Parse validates and decodes a manifest document.
func Parse(data []byte) (*Manifest, error) {
	return ParseNamed(data, FileName)
}

// ParseNamed is Parse with an explicit source name for error messages.
func ParseNamed(data []byte, source string) (*Manifest, error) {
	if _, err := cueutil.Validate(manifestSchema, data, "#ModManifest", cueutil.WithFilename(source)); err != nil {
		return nil, &InvalidManifestError{Source: source, Err: err}
	}

	var m Manifest
	if err := easyjson.Unmarshal(data, &m); err != nil {
		return nil, &InvalidManifestError{Source: source, Err: err}
	}

	// [GO-ONLY] the id names a single file on the device.
	if err := ValidateID(m.ID); err != nil {
		return nil, &InvalidManifestError{Source: source, Err: err}
	}

	// [GO-ONLY] path traversal rules cannot be expressed in the CUE schema.
	if err := m.validatePaths(); err != nil {
		return nil, &InvalidManifestError{Source: source, Err: err}
	}

	return &m, nil
}

// Marshal encodes m with nil file lists rendered as empty arrays.
func Marshal(m *Manifest) ([]byte, error) {
	w := jwriter.Writer{Flags: jwriter.NilSliceAsEmpty}
	m.MarshalEasyJSON(&w)
	return w.BuildBytes()
}

// PersistedName returns the file name the manifest is stored under on the device.
func (m *Manifest) PersistedName() string {
	return m.ID + PersistedExt
}

// Equal reports whether both manifests describe the same mod. Identity is the id.
func (m *Manifest) Equal(other *Manifest) bool {
	if m == nil || other == nil {
		return m == other
	}
	return m.ID == other.ID
}

// DeclaresLibrary reports whether lib appears in LibraryFiles.
func (m *Manifest) DeclaresLibrary(lib string) bool {
	return slices.Contains(m.LibraryFiles, lib)
}

// Clone returns a deep copy.
func (m *Manifest) Clone() *Manifest {
	c := *m
	c.ModFiles = slices.Clone(m.ModFiles)
	c.LibraryFiles = slices.Clone(m.LibraryFiles)
	return &c
}

// String returns "name version (id)" for display.
func (m *Manifest) String() string {
	name := m.Name
	if name == "" {
		name = m.ID
	}
	if m.Version == "" {
		return fmt.Sprintf("%s (%s)", name, m.ID)
	}
	return fmt.Sprintf("%s %s (%s)", name, m.Version, m.ID)
}

func (m *Manifest) validatePaths() error {
	var errs []error
	for i, p := range m.ModFiles {
		if reason := checkRelPath(p); reason != "" {
			errs = append(errs, &InvalidFilePathError{Field: "modFiles", Index: i, Path: p, Reason: reason})
		}
	}
	for i, p := range m.LibraryFiles {
		if reason := checkRelPath(p); reason != "" {
			errs = append(errs, &InvalidFilePathError{Field: "libraryFiles", Index: i, Path: p, Reason: reason})
		}
	}
	return errors.Join(errs...)
}

// ValidateID checks that id is usable as a file name stem in the persisted
// manifests directory: one path element that resolves to itself.
func ValidateID(id string) error {
	reason := ""
	switch {
	case id == "":
		reason = "empty id"
	case len(id) > MaxPathLength:
		reason = fmt.Sprintf("too long (%d chars, max %d)", len(id), MaxPathLength)
	case strings.TrimSpace(id) != id:
		reason = "leading or trailing whitespace"
	case strings.ContainsAny(id, "/\\\x00"):
		reason = "contains a path separator or null byte"
	case id == "." || id == "..":
		reason = "is a relative directory name"
	}
	if reason != "" {
		return &InvalidIDError{ID: id, Reason: reason}
	}
	return nil
}

// ValidateRelPath checks a single declared path against the manifest path rules.
func ValidateRelPath(p string) error {
	if reason := checkRelPath(p); reason != "" {
		return &InvalidFilePathError{Field: "path", Path: p, Reason: reason}
	}
	return nil
}

// checkRelPath returns a non-empty reason when p is not a clean relative path.
// Paths are slash-separated regardless of host OS: they name files on the device.
func checkRelPath(p string) string {
	switch {
	case p == "":
		return "empty path"
	case len(p) > MaxPathLength:
		return fmt.Sprintf("too long (%d chars, max %d)", len(p), MaxPathLength)
	case strings.ContainsRune(p, '\x00'):
		return "contains null byte"
	case strings.ContainsRune(p, '\\'):
		return "backslashes are not allowed; use forward slashes"
	case path.IsAbs(p):
		return "absolute paths are not allowed"
	}

	clean := path.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "escapes the archive root"
	}
	return ""
}
