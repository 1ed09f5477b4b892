package database

import (
	"context"

	"github.com/kozaktomas/facecluster/internal/facematch"
)

// Persister is the durable layer behind an IdentityStore.
type Persister interface {
	// Load returns the full persisted mapping. A missing store yields an empty mapping.
	// An unreadable or undecodable store returns an error wrapping facematch.ErrStoreCorrupt.
	Load(ctx context.Context) (Collections, error)
	// Save replaces the persisted mapping with data. Implementations must not retain data.
	Save(ctx context.Context, data Collections) error
	// Close releases any resources held by the persister.
	Close() error
}

// IncrementalPersister is implemented by backends that can persist single mutations
// without rewriting the full mapping.
type IncrementalPersister interface {
	Persister

	// Append persists one embedding at the end of id's collection.
	Append(ctx context.Context, id facematch.Identity, emb facematch.Embedding) error
	// Reset removes every persisted embedding.
	Reset(ctx context.Context) error
}
