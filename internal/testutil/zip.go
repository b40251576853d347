// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/modctl/modctl/pkg/modmanifest"
)

// ZipEntry is one file in an archive built by WriteZip.
type ZipEntry struct {
	Name string
	Body string
}

// WriteZip creates dir/name as a zip archive holding entries in order and
// returns its path.
func WriteZip(t testing.TB, dir, name string, entries ...ZipEntry) string {
	t.Helper()

	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("failed to create %s: %v", p, err)
	}
	zw := zip.NewWriter(f)
	for _, e := range entries {
		w, err := zw.Create(e.Name)
		if err != nil {
			t.Fatalf("failed to add %s: %v", e.Name, err)
		}
		if _, err := w.Write([]byte(e.Body)); err != nil {
			t.Fatalf("failed to write %s: %v", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to finish zip: %v", err)
	}
	MustClose(t, f)
	return p
}

// ManifestJSON renders m the way a mod author would ship it.
func ManifestJSON(t testing.TB, m *modmanifest.Manifest) string {
	t.Helper()
	data, err := modmanifest.Marshal(m)
	if err != nil {
		t.Fatalf("failed to marshal manifest %s: %v", m.ID, err)
	}
	return string(data)
}

// ModArchive writes a complete mod archive for m: mod.json plus one payload
// file per declared mod and library file, whose body is its own path.
func ModArchive(t testing.TB, dir string, m *modmanifest.Manifest) string {
	t.Helper()

	entries := []ZipEntry{{Name: modmanifest.FileName, Body: ManifestJSON(t, m)}}
	for _, f := range m.LibraryFiles {
		entries = append(entries, ZipEntry{Name: f, Body: f})
	}
	for _, f := range m.ModFiles {
		entries = append(entries, ZipEntry{Name: f, Body: f})
	}
	return WriteZip(t, dir, m.ID+".qmod", entries...)
}
