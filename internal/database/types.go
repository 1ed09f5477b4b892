package database

import (
	"slices"
	"time"

	"github.com/kozaktomas/facecluster/internal/facematch"
)

// Collections maps every identity to its ordered, append-only embedding collection.
type Collections map[facematch.Identity][]facematch.Embedding

// Clone returns a copy whose slices can be read while the original keeps growing.
// Embeddings themselves are shared since they are never mutated.
func (c Collections) Clone() Collections {
	out := make(Collections, len(c))
	for id, embs := range c {
		out[id] = slices.Clip(embs)
	}
	return out
}

// Len returns the total number of stored embeddings.
func (c Collections) Len() int {
	n := 0
	for _, embs := range c {
		n += len(embs)
	}
	return n
}

// Identities returns all identities with at least one embedding, in ascending order.
func (c Collections) Identities() []facematch.Identity {
	ids := make([]facematch.Identity, 0, len(c))
	for id, embs := range c {
		if len(embs) > 0 {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// IdentitySummary describes one identity for listings.
type IdentitySummary struct {
	Identity   facematch.Identity `json:"identity"`
	Embeddings int                `json:"embeddings"`
}

// storeFile is the on-disk shape of a file-backed identity store.
type storeFile struct {
	Version    int                   `msgpack:"version"`
	SavedAt    time.Time             `msgpack:"saved_at"`
	Identities map[int64][][]float32 `msgpack:"identities"`
}

const currentStoreVersion = 1
