package format

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrUnknownFormat is returned by Lookup when no adapter is registered under
// the requested name.
var ErrUnknownFormat = errors.New("unknown format")

// Registry maps format names to adapters. Safe for concurrent use. Each
// pipeline or batch processor holds a reference to the registry it resolves
// against; there is no ambient global registry.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry returns an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter under the given name. Overwrites any existing
// registration.
func (r *Registry) Register(name string, adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.adapters == nil {
		r.adapters = make(map[string]Adapter)
	}
	r.adapters[name] = adapter
}

// Lookup returns the adapter registered under name. A missing adapter is a
// configuration problem of the requesting step, so the error carries the name.
func (r *Registry) Lookup(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, ok := r.adapters[name]
	if !ok {
		return nil, errors.Wrap(ErrUnknownFormat, name)
	}

	return adapter, nil
}

// Names returns all registered format names (unordered).
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}

	return names
}
