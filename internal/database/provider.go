package database

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kozaktomas/facecluster/internal/config"
)

// BackendFactory opens a Persister for the given store configuration.
type BackendFactory func(ctx context.Context, cfg *config.StoreConfig) (Persister, error)

// BackendFile is the built-in single-file backend.
const BackendFile = "file"

var (
	backendsMu sync.RWMutex
	backends   = map[string]BackendFactory{
		BackendFile: func(_ context.Context, cfg *config.StoreConfig) (Persister, error) {
			return NewFilePersister(cfg.Path), nil
		},
	}
)

// RegisterBackend registers a persister constructor under name.
// Backends living in sub-packages register themselves this way to avoid import cycles.
func RegisterBackend(name string, factory BackendFactory) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[name] = factory
}

// Backends returns the names of all registered backends, sorted.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OpenPersister opens the backend selected by cfg.Backend (default: file).
func OpenPersister(ctx context.Context, cfg *config.StoreConfig) (Persister, error) {
	name := cfg.Backend
	if name == "" {
		name = BackendFile
	}

	backendsMu.RLock()
	factory, ok := backends[name]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown store backend %q (available: %v)", name, Backends())
	}

	p, err := factory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening %s store backend: %w", name, err)
	}
	return p, nil
}

// Open opens the configured backend, wraps it in an IdentityStore and loads it.
func Open(ctx context.Context, cfg *config.StoreConfig, opts ...StoreOption) (*IdentityStore, error) {
	p, err := OpenPersister(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store := NewIdentityStore(p, opts...)
	if err := store.Load(ctx); err != nil {
		_ = p.Close()
		return nil, err
	}
	return store, nil
}
