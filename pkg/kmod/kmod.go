// Package kmod tracks loaded kernel modules and notifies observers when one
// is removed.
package kmod

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/dittovfs/internal/logger"
	"github.com/marmos91/dittovfs/pkg/vfs"
)

// Module describes one loaded module.
type Module struct {
	Name     string
	Size     uint64
	LoadedAt time.Time
}

// RemovalObserver is called after a module has been removed from the
// registry. It runs without the registry lock held and cannot fail.
type RemovalObserver func(name string)

// Registry is the set of loaded modules.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]Module

	obsMu     sync.Mutex
	observers map[uint64]RemovalObserver
	nextObsID uint64
}

// NewRegistry creates an empty module registry.
func NewRegistry() *Registry {
	return &Registry{
		modules:   make(map[string]Module),
		observers: make(map[uint64]RemovalObserver),
	}
}

// validName accepts names usable as a single path component, since every
// module appears as an entry under /sys/modules.
func validName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("module name is empty: %w", vfs.EINVAL)
	case name == "." || name == ".." || strings.ContainsAny(name, "/\x00"):
		return fmt.Errorf("invalid module name %q: %w", name, vfs.EINVAL)
	case len(name) > vfs.MaxNameLen:
		return fmt.Errorf("module name longer than %d bytes: %w", vfs.MaxNameLen, vfs.ENAMETOOLONG)
	}
	return nil
}

// Load records m as loaded. EEXIST if the name is taken; EINVAL or
// ENAMETOOLONG if it cannot be a path component.
func (r *Registry) Load(m Module) error {
	if err := validName(m.Name); err != nil {
		return err
	}
	if m.LoadedAt.IsZero() {
		m.LoadedAt = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[m.Name]; exists {
		return fmt.Errorf("module %q already loaded: %w", m.Name, vfs.EEXIST)
	}
	r.modules[m.Name] = m
	logger.Info("Loaded module %s", m.Name)
	return nil
}

// Unload removes name and then notifies the removal observers. ENOENT if
// the module is not loaded.
func (r *Registry) Unload(name string) error {
	r.mu.Lock()
	if _, ok := r.modules[name]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("module %q not loaded: %w", name, vfs.ENOENT)
	}
	delete(r.modules, name)
	r.mu.Unlock()

	logger.Info("Unloaded module %s", name)

	for _, fn := range r.snapshotObservers() {
		fn(name)
	}
	return nil
}

func (r *Registry) snapshotObservers() []RemovalObserver {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()

	ids := make([]uint64, 0, len(r.observers))
	for id := range r.observers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	fns := make([]RemovalObserver, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, r.observers[id])
	}
	return fns
}

// OnRemove registers fn to run after every successful Unload. Observers run
// in registration order. The returned func unregisters fn.
func (r *Registry) OnRemove(fn RemovalObserver) (unregister func()) {
	r.obsMu.Lock()
	r.nextObsID++
	id := r.nextObsID
	r.observers[id] = fn
	r.obsMu.Unlock()

	return func() {
		r.obsMu.Lock()
		delete(r.observers, id)
		r.obsMu.Unlock()
	}
}

// Get returns the module named name.
func (r *Registry) Get(name string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[name]
	return m, ok
}

// Contains reports whether name is loaded.
func (r *Registry) Contains(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names returns the loaded module names, sorted, as one consistent
// snapshot.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns all loaded modules sorted by name.
func (r *Registry) List() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mods := make([]Module, 0, len(r.modules))
	for _, m := range r.modules {
		mods = append(mods, m)
	}
	sort.Slice(mods, func(i, j int) bool { return mods[i].Name < mods[j].Name })
	return mods
}

// Len returns the number of loaded modules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.modules)
}
