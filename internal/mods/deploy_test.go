// SPDX-License-Identifier: MPL-2.0

package mods

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/modctl/modctl/internal/archive"
	"github.com/modctl/modctl/internal/testutil"
	"github.com/modctl/modctl/pkg/modmanifest"
)

func TestInstall_DeploysEveryDeclaredFile(t *testing.T) {
	t.Parallel()

	port := testutil.NewFakePort()
	mgr, rep := newTestManager(t, port)
	layout := mgr.Layout()
	want := testManifest("m1", []string{"m1.so", "extra/m1-data.so"}, []string{"libbeatsaber-hook.so"})
	a := testutil.ModArchive(t, t.TempDir(), want)

	got := mustInstall(t, mgr, a)
	if !got.Equal(want) {
		t.Fatalf("Install() = %v, want %v", got, want)
	}

	for _, f := range want.ModFiles {
		if body := string(port.File(layout.ModPath(f))); body != f {
			t.Errorf("mod file %s = %q, want %q", f, body, f)
		}
	}
	for _, lib := range want.LibraryFiles {
		if body := string(port.File(layout.LibPath(lib))); body != lib {
			t.Errorf("library %s = %q, want %q", lib, body, lib)
		}
	}
	if body := string(port.File(layout.ManifestPath("m1"))); body != testutil.ManifestJSON(t, want) {
		t.Errorf("persisted manifest = %q, want the archive's mod.json bytes", body)
	}

	if reg, ok := mgr.Get("m1"); !ok || !reg.Equal(want) {
		t.Error("m1 should be registered after install")
	}

	wantProgress := []string{
		"Extracting mod . . .",
		"Loading manifest . . .",
		"Copying library file libbeatsaber-hook.so",
		"Copying mod file m1.so",
		"Copying mod file extra/m1-data.so",
		"Copying manifest . . .",
		"Done!",
	}
	if lines := rep.Lines(); !slices.Equal(lines, wantProgress) {
		t.Errorf("progress = %q\nwant %q", lines, wantProgress)
	}
}

func TestInstall_ManifestIsPushedLast(t *testing.T) {
	t.Parallel()

	port := testutil.NewFakePort()
	mgr, _ := newTestManager(t, port)
	m := testManifest("m1", []string{"m1.so"}, []string{"lib.so"})
	mustInstall(t, mgr, testutil.ModArchive(t, t.TempDir(), m))

	muts := port.Mutations()
	if len(muts) != 3 {
		t.Fatalf("got %d mutations, want 3: %v", len(muts), muts)
	}
	want := []testutil.Op{
		{Kind: testutil.OpPush, Path: mgr.Layout().LibPath("lib.so")},
		{Kind: testutil.OpPush, Path: mgr.Layout().ModPath("m1.so")},
		{Kind: testutil.OpPush, Path: mgr.Layout().ManifestPath("m1")},
	}
	if !slices.Equal(muts, want) {
		t.Errorf("mutations = %v, want %v", muts, want)
	}
}

func TestInstall_RejectedBeforeAnyRemoteMutation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	foreign := testManifest("foreign", []string{"foreign.so"}, nil)
	foreign.GameID = "com.other.game"

	tests := []struct {
		name    string
		archive func(t *testing.T) string
		wantErr error
	}{
		{
			name: "wrong target",
			archive: func(t *testing.T) string {
				return testutil.ModArchive(t, dir, foreign)
			},
			wantErr: ErrWrongTarget,
		},
		{
			name: "not a zip",
			archive: func(t *testing.T) string {
				p := filepath.Join(dir, "garbage.qmod")
				testutil.MustWriteFile(t, p, []byte("definitely not a zip"))
				return p
			},
			wantErr: ErrExtraction,
		},
		{
			name: "missing archive",
			archive: func(*testing.T) string {
				return filepath.Join(dir, "absent.qmod")
			},
			wantErr: ErrExtraction,
		},
		{
			name: "no manifest",
			archive: func(t *testing.T) string {
				return testutil.WriteZip(t, dir, "nomanifest.qmod", testutil.ZipEntry{Name: "a.so", Body: "a"})
			},
			wantErr: ErrManifest,
		},
		{
			name: "unparsable manifest",
			archive: func(t *testing.T) string {
				return testutil.WriteZip(t, dir, "badjson.qmod", testutil.ZipEntry{Name: modmanifest.FileName, Body: "{"})
			},
			wantErr: ErrManifest,
		},
		{
			name: "declared file absent",
			archive: func(t *testing.T) string {
				m := testManifest("hollow", []string{"hollow.so"}, nil)
				return testutil.WriteZip(t, dir, "hollow.qmod",
					testutil.ZipEntry{Name: modmanifest.FileName, Body: testutil.ManifestJSON(t, m)})
			},
			wantErr: ErrManifest,
		},
		{
			name: "id escapes the manifests directory",
			archive: func(t *testing.T) string {
				m := testManifest("../../../Android/data/x/evil", []string{"evil.so"}, nil)
				return testutil.WriteZip(t, dir, "evilid.qmod",
					testutil.ZipEntry{Name: modmanifest.FileName, Body: testutil.ManifestJSON(t, m)},
					testutil.ZipEntry{Name: "evil.so", Body: "x"})
			},
			wantErr: modmanifest.ErrInvalidID,
		},
		{
			name: "id aliasing another file name",
			archive: func(t *testing.T) string {
				m := testManifest("./a", []string{"a.so"}, nil)
				return testutil.WriteZip(t, dir, "dotslash.qmod",
					testutil.ZipEntry{Name: modmanifest.FileName, Body: testutil.ManifestJSON(t, m)},
					testutil.ZipEntry{Name: "a.so", Body: "x"})
			},
			wantErr: ErrManifest,
		},
		{
			name: "entry escapes scratch",
			archive: func(t *testing.T) string {
				return testutil.WriteZip(t, dir, "evil.qmod", testutil.ZipEntry{Name: "../../evil.so", Body: "x"})
			},
			wantErr: ErrExtraction,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			port := testutil.NewFakePort()
			mgr, rep := newTestManager(t, port)

			_, err := mgr.Install(context.Background(), tt.archive(t))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Install() error = %v, want %v", err, tt.wantErr)
			}
			if muts := port.Mutations(); len(muts) != 0 {
				t.Errorf("rejected install mutated the device: %v", muts)
			}
			if mgr.Registry().Len() != 0 {
				t.Error("rejected install registered a mod")
			}
			if rep.Contains("Done!") {
				t.Error("rejected install reported Done!")
			}
		})
	}
}

func TestInstall_MissingFilesAreNamed(t *testing.T) {
	t.Parallel()

	m := testManifest("hollow", []string{"present.so", "gone.so"}, []string{"libgone.so"})
	a := testutil.WriteZip(t, t.TempDir(), "hollow.qmod",
		testutil.ZipEntry{Name: modmanifest.FileName, Body: testutil.ManifestJSON(t, m)},
		testutil.ZipEntry{Name: "present.so", Body: "x"},
	)
	mgr, _ := newTestManager(t, testutil.NewFakePort())

	_, err := mgr.Install(context.Background(), a)
	var merr *ManifestError
	if !errors.As(err, &merr) {
		t.Fatalf("Install() error = %v, want *ManifestError", err)
	}
	if want := []string{"libgone.so", "gone.so"}; !slices.Equal(merr.Missing, want) {
		t.Errorf("Missing = %v, want %v", merr.Missing, want)
	}
}

func TestInstall_AlreadyInstalledMutatesNothing(t *testing.T) {
	t.Parallel()

	port := testutil.NewFakePort()
	mgr, _ := newTestManager(t, port)
	a := testutil.ModArchive(t, t.TempDir(), testManifest("m1", []string{"m1.so"}, []string{"lib.so"}))
	mustInstall(t, mgr, a)

	port.ResetOps()
	before := port.Files()

	_, err := mgr.Install(context.Background(), a)
	var already *AlreadyInstalledError
	if !errors.As(err, &already) || already.ID != "m1" {
		t.Fatalf("Install() error = %v, want AlreadyInstalledError for m1", err)
	}
	if muts := port.Mutations(); len(muts) != 0 {
		t.Errorf("duplicate install mutated the device: %v", muts)
	}
	if after := port.Files(); !slices.Equal(before, after) {
		t.Errorf("device files changed: %v -> %v", before, after)
	}
}

func TestInstall_NestedArchiveRoot(t *testing.T) {
	t.Parallel()

	m := testManifest("nested", []string{"nested.so"}, nil)
	a := testutil.WriteZip(t, t.TempDir(), "nested.qmod",
		testutil.ZipEntry{Name: "nested/" + modmanifest.FileName, Body: testutil.ManifestJSON(t, m)},
		testutil.ZipEntry{Name: "nested/nested.so", Body: "payload"},
	)
	port := testutil.NewFakePort()
	mgr, _ := newTestManager(t, port)

	mustInstall(t, mgr, a)
	if body := string(port.File(mgr.Layout().ModPath("nested.so"))); body != "payload" {
		t.Errorf("nested.so = %q, want payload", body)
	}
}

func TestInstall_PushFailureStopsAndLeavesPartialFiles(t *testing.T) {
	t.Parallel()

	port := testutil.NewFakePort()
	mgr, rep := newTestManager(t, port)
	layout := mgr.Layout()
	m := testManifest("m1", []string{"a.so", "b.so"}, []string{"lib.so"})
	a := testutil.ModArchive(t, t.TempDir(), m)

	boom := errors.New("device offline")
	port.Fail = func(kind, p string) error {
		if kind == testutil.OpPush && p == layout.ModPath("b.so") {
			return boom
		}
		return nil
	}

	_, err := mgr.Install(context.Background(), a)
	var derr *DeploymentError
	if !errors.As(err, &derr) {
		t.Fatalf("Install() error = %v, want *DeploymentError", err)
	}
	if derr.Path != layout.ModPath("b.so") || !errors.Is(err, boom) {
		t.Errorf("DeploymentError = %+v, want push of b.so wrapping the transport error", derr)
	}

	if !port.Has(layout.LibPath("lib.so")) || !port.Has(layout.ModPath("a.so")) {
		t.Error("files pushed before the failure should remain")
	}
	if port.Has(layout.ManifestPath("m1")) {
		t.Error("manifest must not be pushed after a failed file push")
	}
	if mgr.Registry().Contains("m1") {
		t.Error("failed install must not register the mod")
	}
	if rep.Contains("Done!") {
		t.Error("failed install reported Done!")
	}

	// Retrying after the fault clears completes the install.
	port.Fail = nil
	mustInstall(t, mgr, a)
}

func TestInstall_ScratchIsDiscarded(t *testing.T) {
	t.Parallel()

	scratch := filepath.Join(t.TempDir(), "scratch")
	port := testutil.NewFakePort()
	reg := NewRegistry()
	d := NewDeployer(port, reg, DefaultLayout(testTarget), testTarget, scratch, archive.Zip{}, quietLogger())

	m := testManifest("m1", []string{"m1.so"}, nil)
	if _, err := d.Install(context.Background(), testutil.ModArchive(t, t.TempDir(), m), nopReporter{}); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if _, err := os.Stat(scratch); !os.IsNotExist(err) {
		t.Errorf("scratch directory should be removed, stat error = %v", err)
	}
}

func TestInstall_CancelledContext(t *testing.T) {
	t.Parallel()

	port := testutil.NewFakePort()
	mgr, _ := newTestManager(t, port)
	a := testutil.ModArchive(t, t.TempDir(), testManifest("m1", []string{"m1.so"}, nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := mgr.Install(ctx, a); !errors.Is(err, context.Canceled) {
		t.Fatalf("Install() error = %v, want context.Canceled", err)
	}
	if muts := port.Mutations(); len(muts) != 0 {
		t.Errorf("cancelled install mutated the device: %v", muts)
	}
}
