// Package facematch provides the face matching core shared between CLI and web handlers:
// the embedding distance, greedy recognition against known identities and density-based
// clustering of unlabeled faces.
package facematch

import (
	"slices"
)

// Embedding is a fixed-length face descriptor produced by the embedding server.
// Embeddings are treated as immutable once produced.
type Embedding []float32

// Identity is an externally assigned, stable person identifier.
type Identity int64

// Match is one accepted (detection, identity) pair produced by recognition.
type Match struct {
	Detection int      `json:"detection"`
	Identity  Identity `json:"identity"`
	Distance  float64  `json:"distance"`
}

// IdentitySet is the set of identities recognized in a batch.
type IdentitySet map[Identity]struct{}

// Has reports whether id is in the set.
func (s IdentitySet) Has(id Identity) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the identities in ascending order.
func (s IdentitySet) Sorted() []Identity {
	out := make([]Identity, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// NoiseLabel is the cluster label given to points reachable from no core point.
const NoiseLabel = -1

// Clusters maps a provisional cluster label to the embeddings it contains.
// Labels carry no meaning beyond grouping and are not stable across calls.
type Clusters map[int][]Embedding

// Gallery is a read-only, consistent view of known identities and their embeddings.
type Gallery interface {
	// Identities returns every identity with at least one stored embedding, in ascending order.
	Identities() []Identity
	// NearestDistance returns the minimum distance between emb and any embedding of id.
	NearestDistance(id Identity, emb Embedding) (float64, error)
}

// Matching defaults
const (
	// DefaultThreshold is the acceptance threshold for recognition. A candidate is accepted
	// only when its distance is strictly below it.
	DefaultThreshold = 0.5

	// DefaultEps is the default DBSCAN neighborhood radius.
	DefaultEps = 0.5

	// DefaultMinPts is the default DBSCAN minimum neighborhood size (itself included).
	DefaultMinPts = 1
)
