// SPDX-License-Identifier: MPL-2.0

package mods

import (
	"cmp"
	"slices"
	"sync"

	"github.com/modctl/modctl/pkg/modmanifest"
)

// Registry is the in-memory record of installed mods, keyed by id. It mirrors
// the manifests persisted on the device and is rebuilt by Discovery.
//
// Every mutation is a single map operation under the write lock, so readers
// only ever see the state before or after a step.
type Registry struct {
	mu   sync.RWMutex
	mods map[string]*modmanifest.Manifest
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{mods: make(map[string]*modmanifest.Manifest)}
}

// Register inserts or replaces the entry for m.ID.
func (r *Registry) Register(m *modmanifest.Manifest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mods[m.ID] = m
}

// Unregister removes id and returns the manifest it held.
func (r *Registry) Unregister(id string) (*modmanifest.Manifest, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.mods[id]
	if ok {
		delete(r.mods, id)
	}
	return m, ok
}

// Get returns the manifest registered under id.
func (r *Registry) Get(id string) (*modmanifest.Manifest, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.mods[id]
	return m, ok
}

// Contains reports whether id is registered.
func (r *Registry) Contains(id string) bool {
	_, ok := r.Get(id)
	return ok
}

// Len returns the number of registered mods.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.mods)
}

// All returns a snapshot of every manifest, sorted by id.
func (r *Registry) All() []*modmanifest.Manifest {
	r.mu.RLock()
	out := make([]*modmanifest.Manifest, 0, len(r.mods))
	for _, m := range r.mods {
		out = append(out, m)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b *modmanifest.Manifest) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// LibraryUser returns the id of a registered mod that declares lib, if any.
// When several do, the smallest id is returned so reports are stable.
// The answer is computed from the current contents on every call.
func (r *Registry) LibraryUser(lib string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, found := "", false
	for id, m := range r.mods {
		if !m.DeclaresLibrary(lib) {
			continue
		}
		if !found || id < user {
			user, found = id, true
		}
	}
	return user, found
}

// Replace swaps the whole contents for manifests under one write lock, so
// readers see either the old set or the new one. A later duplicate id wins.
func (r *Registry) Replace(manifests []*modmanifest.Manifest) {
	next := make(map[string]*modmanifest.Manifest, len(manifests))
	for _, m := range manifests {
		next[m.ID] = m
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mods = next
}

// Reset drops every entry.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.mods)
}
