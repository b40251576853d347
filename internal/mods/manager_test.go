// SPDX-License-Identifier: MPL-2.0

package mods

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/modctl/modctl/internal/archive"
	"github.com/modctl/modctl/internal/testutil"
)

func TestNewManager_RejectsIncompleteConfig(t *testing.T) {
	t.Parallel()

	port := testutil.NewFakePort()
	valid := Config{
		Target:     testTarget,
		Layout:     DefaultLayout(testTarget),
		ScratchDir: t.TempDir(),
		Extractor:  archive.Zip{},
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing target", func(c *Config) { c.Target = "" }},
		{"missing extractor", func(c *Config) { c.Extractor = nil }},
		{"missing scratch", func(c *Config) { c.ScratchDir = "" }},
		{"empty layout dir", func(c *Config) { c.Layout.ModsDir = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid
			tt.mutate(&cfg)
			if _, err := NewManager(port, cfg); err == nil {
				t.Error("NewManager() should fail")
			}
		})
	}

	if _, err := NewManager(nil, valid); err == nil {
		t.Error("NewManager(nil port) should fail")
	}
}

func TestNewManager_ExpandsLayoutPlaceholders(t *testing.T) {
	t.Parallel()

	mgr, err := NewManager(testutil.NewFakePort(), Config{
		Target:     testTarget,
		Layout:     Layout{ManifestsDir: DefaultManifestsDir, ModsDir: DefaultModsDir, LibsDir: DefaultLibsDir},
		ScratchDir: t.TempDir(),
		Extractor:  archive.Zip{},
		Logger:     quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if got, want := mgr.Layout(), DefaultLayout(testTarget); got != want {
		t.Errorf("Layout() = %+v, want %+v", got, want)
	}
	if mgr.Target() != testTarget {
		t.Errorf("Target() = %q", mgr.Target())
	}
}

func TestManager_LoadReplacesRegistry(t *testing.T) {
	t.Parallel()

	port := testutil.NewFakePort()
	mgr, _ := newTestManager(t, port)
	layout := mgr.Layout()

	mgr.Registry().Register(testManifest("stale", nil, nil))
	port.Put(layout.ManifestPath("fresh"), []byte(testutil.ManifestJSON(t, testManifest("fresh", []string{"f.so"}, nil))))

	parseErrs, err := mgr.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(parseErrs) != 0 {
		t.Errorf("Load() parse errors = %v", parseErrs)
	}
	if _, ok := mgr.Get("stale"); ok {
		t.Error("stale entry should be gone after Load")
	}
	if _, ok := mgr.Get("fresh"); !ok {
		t.Error("fresh entry should be registered after Load")
	}
}

func TestManager_TryOperationsFailFastWhenBusy(t *testing.T) {
	t.Parallel()

	port := testutil.NewFakePort()
	mgr, _ := newTestManager(t, port)
	dir := t.TempDir()
	first := testutil.ModArchive(t, dir, testManifest("first", []string{"first.so"}, nil))
	second := testutil.ModArchive(t, dir, testManifest("second", []string{"second.so"}, nil))

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	port.Fail = func(kind, _ string) error {
		if kind == testutil.OpPush {
			once.Do(func() {
				close(started)
				<-release
			})
		}
		return nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := mgr.Install(context.Background(), first)
		done <- err
	}()
	<-started

	if _, err := mgr.TryInstall(context.Background(), second); !errors.Is(err, ErrBusy) {
		t.Errorf("TryInstall() error = %v, want ErrBusy", err)
	}
	if _, err := mgr.TryUninstall(context.Background(), "first"); !errors.Is(err, ErrBusy) {
		t.Errorf("TryUninstall() error = %v, want ErrBusy", err)
	}

	// A queued caller whose context ends gives up without running.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := mgr.Install(ctx, second); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("queued Install() error = %v, want context.DeadlineExceeded", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first Install() error = %v", err)
	}
	if _, ok := mgr.Get("second"); ok {
		t.Error("cancelled install must not register its mod")
	}

	if _, err := mgr.TryInstall(context.Background(), second); err != nil {
		t.Errorf("TryInstall() on idle manager error = %v", err)
	}
}

func TestManager_OperationsRunInArrivalOrder(t *testing.T) {
	t.Parallel()

	port := testutil.NewFakePort()
	mgr, _ := newTestManager(t, port)
	dir := t.TempDir()

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	port.Fail = func(kind, _ string) error {
		if kind == testutil.OpPush {
			once.Do(func() {
				close(started)
				<-release
			})
		}
		return nil
	}

	var mu sync.Mutex
	var order []string
	mgr.Subscribe(func(c Change) {
		mu.Lock()
		order = append(order, c.Manifest.ID)
		mu.Unlock()
	})

	ids := []string{"m0", "m1", "m2", "m3"}
	archives := make([]string, len(ids))
	for i, id := range ids {
		archives[i] = testutil.ModArchive(t, dir, testManifest(id, []string{id + ".so"}, nil))
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := mgr.Install(context.Background(), archives[0]); err != nil {
			t.Errorf("Install(m0) error = %v", err)
		}
	}()
	<-started

	// Queue the rest one after another so their arrival order is fixed.
	for _, a := range archives[1:] {
		wg.Add(1)
		queued := make(chan struct{})
		go func() {
			defer wg.Done()
			close(queued)
			if _, err := mgr.Install(context.Background(), a); err != nil {
				t.Errorf("Install(%s) error = %v", a, err)
			}
		}()
		<-queued
		time.Sleep(10 * time.Millisecond)
	}

	close(release)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if !slices.Equal(order, ids) {
		t.Errorf("completion order = %v, want %v", order, ids)
	}
}

func TestManager_PublishesChanges(t *testing.T) {
	t.Parallel()

	port := testutil.NewFakePort()
	mgr, _ := newTestManager(t, port)
	a := testutil.ModArchive(t, t.TempDir(), testManifest("m1", []string{"m1.so"}, nil))

	var got []Change
	unsubscribe := mgr.Subscribe(func(c Change) { got = append(got, c) })

	mustInstall(t, mgr, a)
	if _, err := mgr.Uninstall(context.Background(), "m1"); err != nil {
		t.Fatalf("Uninstall() error = %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("got %d changes, want 2", len(got))
	}
	if got[0].Kind != Added || got[0].Manifest.ID != "m1" {
		t.Errorf("first change = %v %s, want added m1", got[0].Kind, got[0].Manifest.ID)
	}
	if got[1].Kind != Removed || got[1].Manifest.ID != "m1" {
		t.Errorf("second change = %v %s, want removed m1", got[1].Kind, got[1].Manifest.ID)
	}

	unsubscribe()
	mustInstall(t, mgr, a)
	if len(got) != 2 {
		t.Errorf("unsubscribed handler still received changes: %d", len(got))
	}

	// Failed operations publish nothing.
	var failed []Change
	mgr.Subscribe(func(c Change) { failed = append(failed, c) })
	if _, err := mgr.Install(context.Background(), a); !errors.Is(err, ErrAlreadyInstalled) {
		t.Fatalf("Install() error = %v, want ErrAlreadyInstalled", err)
	}
	if len(failed) != 0 {
		t.Errorf("failed install published %d changes", len(failed))
	}
}

func TestChangeKind_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind ChangeKind
		want string
	}{
		{Added, "added"},
		{Removed, "removed"},
		{ChangeKind(0), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("ChangeKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestManager_CrossProcessLock(t *testing.T) {
	t.Parallel()

	port := testutil.NewFakePort()
	mgr, err := NewManager(port, Config{
		Target:     testTarget,
		Layout:     DefaultLayout(testTarget),
		ScratchDir: t.TempDir(),
		Extractor:  archive.Zip{},
		LockPath:   t.TempDir() + "/device.lock",
		Logger:     quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	a := testutil.ModArchive(t, t.TempDir(), testManifest("locked", []string{"locked.so"}, nil))
	mustInstall(t, mgr, a)
	if _, err := mgr.Uninstall(context.Background(), "locked"); err != nil {
		t.Fatalf("Uninstall() error = %v", err)
	}
}

func TestManager_ResyncsUnderDeviceLock(t *testing.T) {
	t.Parallel()

	if runtime.GOOS != "linux" {
		t.Skip("device lock is only available on linux")
	}

	port := testutil.NewFakePort()
	lockPath := filepath.Join(t.TempDir(), "device.lock")
	newShared := func() *Manager {
		t.Helper()
		mgr, err := NewManager(port, Config{
			Target:     testTarget,
			Layout:     DefaultLayout(testTarget),
			ScratchDir: t.TempDir(),
			Extractor:  archive.Zip{},
			LockPath:   lockPath,
			Logger:     quietLogger(),
		})
		if err != nil {
			t.Fatalf("NewManager() error = %v", err)
		}
		return mgr
	}
	first, second := newShared(), newShared()
	layout := first.Layout()
	ctx := context.Background()

	dir := t.TempDir()
	mustInstall(t, first, testutil.ModArchive(t, dir, testManifest("a", []string{"a.so"}, []string{"libshared.so"})))
	if _, err := second.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// second never saw b; its stale registry would treat libshared.so as
	// used by a alone.
	mustInstall(t, first, testutil.ModArchive(t, dir, testManifest("b", []string{"b.so"}, []string{"libshared.so"})))
	if _, err := second.Uninstall(ctx, "a"); err != nil {
		t.Fatalf("Uninstall(a) error = %v", err)
	}
	if !port.Has(layout.LibPath("libshared.so")) {
		t.Error("library still used by b was deleted")
	}
	if !second.Registry().Contains("b") {
		t.Error("second manager should have picked up b from the device")
	}

	// first still lists a; reinstalling it must not fail as a duplicate.
	if !first.Registry().Contains("a") {
		t.Fatal("first manager should still hold its stale view before the next operation")
	}
	mustInstall(t, first, testutil.ModArchive(t, dir, testManifest("a", []string{"a.so"}, []string{"libshared.so"})))
	if got := first.Registry().Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
}
