package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-semval/pkg/descriptor"
)

// ErrNoHandle reports that neither the override chain, the base registry nor
// any ancestor in the type's mro has a handle for the type.
var ErrNoHandle = errors.New("registry: no handle for type")

// Handle names the component that renders or edits one value type.
type Handle struct {
	// Name identifies the component; compiled templates are cached by it.
	Name string
	// Template is the component source handed to the template engine.
	Template string
	// NoLabel asks container renderers to show the component without the
	// surrounding field label.
	NoLabel bool
}

// Registry maps type names to handles. Registration is last-write-wins.
// When a descriptor source is attached, lookups also walk the mro chain of the
// requested type.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]Handle
	types   descriptor.Source
}

// Option configures a Registry.
type Option func(*Registry)

// WithDescriptors lets Find fall back to the mro chain reported for a type.
func WithDescriptors(source descriptor.Source) Option {
	return func(r *Registry) {
		r.types = source
	}
}

// New creates an empty registry.
func New(options ...Option) *Registry {
	r := &Registry{handles: make(map[string]Handle)}
	for _, opt := range options {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Register associates handle with typeName, silently replacing any previous
// handle for the same type.
func (r *Registry) Register(typeName string, handle Handle) error {
	typeName = strings.TrimSpace(typeName)
	if typeName == "" {
		return errors.New("registry: type name is required")
	}
	if strings.TrimSpace(handle.Name) == "" {
		return fmt.Errorf("registry: handle name for %q is required", typeName)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[typeName] = handle
	return nil
}

// MustRegister panics on registration failure. Useful for init-time wiring.
func (r *Registry) MustRegister(typeName string, handle Handle) {
	if err := r.Register(typeName, handle); err != nil {
		panic(err)
	}
}

// Lookup returns the base handle registered for typeName, ignoring overrides
// and mro.
func (r *Registry) Lookup(typeName string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handle, ok := r.handles[typeName]
	return handle, ok
}

// Types returns the sorted registered type names.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handles))
	for name := range r.handles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot copies the base map so resolution can run without holding locks.
func (r *Registry) Snapshot() map[string]Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Handle, len(r.handles))
	for name, handle := range r.handles {
		out[name] = handle
	}
	return out
}

// Find resolves the handle for typeName. The override chain is consulted
// innermost first, then the base registry. When both miss and a descriptor
// source is attached, each ancestor in the type's mro is tried in order with
// the same precedence. A nil overrides means no active scopes.
func (r *Registry) Find(ctx context.Context, typeName string, overrides *Overrides) (Handle, error) {
	if handle, ok := Resolve(r.Snapshot(), overrides, typeName); ok {
		return handle, nil
	}
	if r.types == nil {
		return Handle{}, fmt.Errorf("%w %q", ErrNoHandle, typeName)
	}

	desc, err := r.types.Get(ctx, typeName)
	if err != nil {
		return Handle{}, fmt.Errorf("registry: resolve mro for %q: %w", typeName, err)
	}
	base := r.Snapshot()
	for _, ancestor := range desc.Mro {
		if ancestor == typeName {
			continue
		}
		if handle, ok := Resolve(base, overrides, ancestor); ok {
			return handle, nil
		}
	}
	return Handle{}, fmt.Errorf("%w %q", ErrNoHandle, typeName)
}

// Resolve is the pure lookup over a base map and an override chain.
func Resolve(base map[string]Handle, overrides *Overrides, typeName string) (Handle, bool) {
	for scope := overrides; scope != nil; scope = scope.parent {
		if handle, ok := scope.entries[typeName]; ok {
			return handle, true
		}
	}
	handle, ok := base[typeName]
	return handle, ok
}
