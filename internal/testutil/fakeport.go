// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"context"
	"fmt"
	"os"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/modctl/modctl/internal/device"
)

const (
	// OpEnsureDir and the other Op kinds name the Port call that was recorded.
	OpEnsureDir = "ensure"
	OpList      = "list"
	OpRead      = "read"
	OpDelete    = "delete"
	OpPush      = "push"
)

type (
	// Op is one recorded Port call.
	Op struct {
		Kind string
		Path string
	}

	// FakePort is an in-memory device.Port. It records every call and lets
	// tests inject failures per operation and path.
	FakePort struct {
		mu    sync.Mutex
		files map[string][]byte
		dirs  map[string]bool
		ops   []Op

		// Fail, when set, is consulted before every call; a non-nil result
		// is returned instead of performing the operation.
		Fail func(kind, p string) error
	}
)

var _ device.Port = (*FakePort)(nil)

// NewFakePort returns an empty device.
func NewFakePort() *FakePort {
	return &FakePort{
		files: make(map[string][]byte),
		dirs:  make(map[string]bool),
	}
}

func (f *FakePort) begin(kind, p string) error {
	f.mu.Lock()
	f.ops = append(f.ops, Op{Kind: kind, Path: p})
	fail := f.Fail
	f.mu.Unlock()
	if fail != nil {
		return fail(kind, p)
	}
	return nil
}

// EnsureDir implements device.Port.
func (f *FakePort) EnsureDir(_ context.Context, dir string) error {
	if err := f.begin(OpEnsureDir, dir); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirs[path.Clean(dir)] = true
	return nil
}

// List implements device.Port with the same filtering as device.ParseListing.
func (f *FakePort) List(_ context.Context, dir string) ([]string, error) {
	if err := f.begin(OpList, dir); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	dir = path.Clean(dir)
	if !f.dirs[dir] {
		return nil, fmt.Errorf("ls: %s: No such file or directory", dir)
	}
	var names []string
	for p := range f.files {
		if path.Dir(p) == dir && strings.HasSuffix(p, device.ManifestExt) {
			names = append(names, path.Base(p))
		}
	}
	slices.Sort(names)
	return names, nil
}

// Read implements device.Port.
func (f *FakePort) Read(_ context.Context, p string) ([]byte, error) {
	if err := f.begin(OpRead, p); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[path.Clean(p)]
	if !ok {
		return nil, fmt.Errorf("cat: %s: No such file or directory", p)
	}
	return slices.Clone(data), nil
}

// Delete implements device.Port.
func (f *FakePort) Delete(_ context.Context, p string) error {
	if err := f.begin(OpDelete, p); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, path.Clean(p))
	return nil
}

// Push implements device.Port by reading the local file into memory.
func (f *FakePort) Push(_ context.Context, local, remote string) error {
	if err := f.begin(OpPush, remote); err != nil {
		return err
	}
	data, err := os.ReadFile(local)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	remote = path.Clean(remote)
	f.files[remote] = data
	for d := path.Dir(remote); d != "." && d != "/"; d = path.Dir(d) {
		f.dirs[d] = true
	}
	return nil
}

// Put seeds a remote file without recording an operation.
func (f *FakePort) Put(p string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = path.Clean(p)
	f.files[p] = slices.Clone(data)
	for d := path.Dir(p); d != "." && d != "/"; d = path.Dir(d) {
		f.dirs[d] = true
	}
}

// Has reports whether the remote file exists.
func (f *FakePort) Has(p string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[path.Clean(p)]
	return ok
}

// File returns the remote file contents, or nil.
func (f *FakePort) File(p string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.files[path.Clean(p)])
}

// Files returns every remote file path, sorted.
func (f *FakePort) Files() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.files))
	for p := range f.files {
		names = append(names, p)
	}
	slices.Sort(names)
	return names
}

// Ops returns the recorded calls in order.
func (f *FakePort) Ops() []Op {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.ops)
}

// Mutations returns only the recorded pushes and deletes.
func (f *FakePort) Mutations() []Op {
	var out []Op
	for _, op := range f.Ops() {
		if op.Kind == OpPush || op.Kind == OpDelete {
			out = append(out, op)
		}
	}
	return out
}

// ResetOps forgets the recorded calls.
func (f *FakePort) ResetOps() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = nil
}
