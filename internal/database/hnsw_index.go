package database

import (
	"sort"
	"sync"

	"github.com/coder/hnsw"
	"github.com/m-mizutani/goerr/v2"

	"github.com/kozaktomas/facecluster/internal/facematch"
)

// IndexHit is one approximate nearest stored embedding.
type IndexHit struct {
	Identity  facematch.Identity  `json:"identity"`
	Distance  float64             `json:"distance"`
	Embedding facematch.Embedding `json:"-"`
}

// EmbeddingIndex wraps an HNSW graph over every stored embedding for fast approximate
// "who does this face look like" searches. Recognition never uses it: matching is exact.
type EmbeddingIndex struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[int64]
	owners map[int64]facematch.Identity // Maps HNSW node key to identity
	next   int64
	dim    int
}

// NewEmbeddingIndex creates a new empty index.
func NewEmbeddingIndex() *EmbeddingIndex {
	return &EmbeddingIndex{
		owners: make(map[int64]facematch.Identity),
	}
}

func newGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.EuclideanDistance
	return g
}

// Build replaces the index contents with data.
func (h *EmbeddingIndex) Build(data Collections) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.graph = nil
	h.owners = make(map[int64]facematch.Identity, data.Len())
	h.next = 0
	h.dim = 0

	for _, id := range data.Identities() {
		for _, emb := range data[id] {
			if err := h.addLocked(id, emb); err != nil {
				return err
			}
		}
	}
	return nil
}

// Add indexes a single embedding of id.
func (h *EmbeddingIndex) Add(id facematch.Identity, emb facematch.Embedding) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.addLocked(id, emb)
}

func (h *EmbeddingIndex) addLocked(id facematch.Identity, emb facematch.Embedding) error {
	if len(emb) == 0 {
		return nil
	}
	if h.dim != 0 && len(emb) != h.dim {
		return goerr.Wrap(facematch.ErrInvalidInput, "embedding dimension does not match index",
			goerr.V("dim", len(emb)), goerr.V("index_dim", h.dim))
	}
	if h.graph == nil {
		h.graph = newGraph()
	}

	key := h.next
	h.next++
	h.graph.Add(hnsw.MakeNode(key, []float32(emb)))
	h.owners[key] = id
	h.dim = len(emb)
	return nil
}

// Reset drops every indexed embedding.
func (h *EmbeddingIndex) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.graph = nil
	h.owners = make(map[int64]facematch.Identity)
	h.next = 0
	h.dim = 0
}

// Search finds up to k stored embeddings closest to query, nearest first.
func (h *EmbeddingIndex) Search(query facematch.Embedding, k int) ([]IndexHit, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if k <= 0 {
		return nil, goerr.Wrap(facematch.ErrInvalidInput, "k must be positive", goerr.V("k", k))
	}
	if h.graph == nil || len(h.owners) == 0 {
		return []IndexHit{}, nil
	}
	if len(query) != h.dim {
		return nil, goerr.Wrap(facematch.ErrInvalidInput, "query dimension does not match index",
			goerr.V("dim", len(query)), goerr.V("index_dim", h.dim))
	}

	neighbors := h.graph.Search([]float32(query), k*HNSWSearchMultiplier)
	hits := make([]IndexHit, 0, len(neighbors))
	for _, n := range neighbors {
		id, ok := h.owners[n.Key]
		if !ok {
			continue
		}
		// Recompute the exact distance from the stored vector.
		d, err := facematch.Distance(query, n.Value)
		if err != nil {
			return nil, err
		}
		hits = append(hits, IndexHit{Identity: id, Distance: d, Embedding: n.Value})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Count returns the number of indexed embeddings.
func (h *EmbeddingIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.owners)
}
