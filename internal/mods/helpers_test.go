// SPDX-License-Identifier: MPL-2.0

package mods

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/modctl/modctl/internal/archive"
	"github.com/modctl/modctl/internal/testutil"
	"github.com/modctl/modctl/pkg/modmanifest"
)

const testTarget = "com.beatgames.beatsaber"

// recorder collects progress lines.
type recorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *recorder) Progress(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, msg)
}

func (r *recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

func (r *recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = nil
}

func (r *recorder) Contains(msg string) bool {
	for _, l := range r.Lines() {
		if l == msg {
			return true
		}
	}
	return false
}

func quietLogger() *log.Logger {
	return log.NewWithOptions(&strings.Builder{}, log.Options{Level: log.FatalLevel})
}

func testManifest(id string, mods, libs []string) *modmanifest.Manifest {
	return &modmanifest.Manifest{
		ID:           id,
		Name:         strings.ToUpper(id),
		Version:      "1.0.0",
		GameID:       testTarget,
		GameVersion:  "1.28.0",
		ModFiles:     mods,
		LibraryFiles: libs,
	}
}

func newTestManager(t *testing.T, port *testutil.FakePort) (*Manager, *recorder) {
	t.Helper()
	rep := &recorder{}
	mgr, err := NewManager(port, Config{
		Target:     testTarget,
		Layout:     DefaultLayout(testTarget),
		ScratchDir: filepath.Join(t.TempDir(), "scratch"),
		Extractor:  archive.Zip{},
		Reporter:   rep,
		Logger:     quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return mgr, rep
}

func mustInstall(t *testing.T, mgr *Manager, archivePath string) *modmanifest.Manifest {
	t.Helper()
	m, err := mgr.Install(context.Background(), archivePath)
	if err != nil {
		t.Fatalf("Install(%s) error = %v", filepath.Base(archivePath), err)
	}
	return m
}
