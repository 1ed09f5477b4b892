package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/m-mizutani/goerr/v2"

	"github.com/kozaktomas/facecluster/internal/facematch"
)

// IdentityStore maps identities to their growing embedding collections and mirrors every
// mutation to a Persister. Mutations are serialized; reads may run concurrently and
// never observe a partially applied append.
type IdentityStore struct {
	mu        sync.RWMutex
	data      Collections
	dim       int // 0 while the store is empty
	persister Persister
	index     *EmbeddingIndex
	logger    *slog.Logger
}

// StoreOption configures an IdentityStore.
type StoreOption func(*IdentityStore)

// WithLogger sets the logger used for recoverable conditions.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *IdentityStore) {
		s.logger = logger
	}
}

// WithIndex keeps idx in sync with the store contents.
func WithIndex(idx *EmbeddingIndex) StoreOption {
	return func(s *IdentityStore) {
		s.index = idx
	}
}

// NewIdentityStore creates an empty store backed by p. Call Load to read persisted data.
func NewIdentityStore(p Persister, opts ...StoreOption) *IdentityStore {
	s := &IdentityStore{
		data:      Collections{},
		persister: p,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory mapping with the persisted one.
// A corrupt store is logged and recovered as an empty store; the durable layer is
// cleared too so later appends do not land next to the unreadable data.
func (s *IdentityStore) Load(ctx context.Context) error {
	data, err := s.persister.Load(ctx)
	if errors.Is(err, facematch.ErrStoreCorrupt) {
		s.logger.Warn("identity store is corrupt, starting empty", slog.Any("error", err))
		if err := s.clearPersisted(ctx); err != nil {
			return fmt.Errorf("clearing corrupt identity store: %w", err)
		}
		data = Collections{}
	} else if err != nil {
		return fmt.Errorf("loading identity store: %w", err)
	}
	if data == nil {
		data = Collections{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
	s.dim = dimensionOf(data)
	if s.index != nil {
		if err := s.index.Build(data); err != nil {
			s.logger.Warn("failed to build embedding index", slog.Any("error", err))
		}
	}
	s.logger.Debug("identity store loaded",
		slog.Int("identities", len(data.Identities())),
		slog.Int("embeddings", data.Len()))
	return nil
}

// Save writes the full mapping to the persister.
func (s *IdentityStore) Save(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.persister.Save(ctx, s.data); err != nil {
		return fmt.Errorf("saving identity store: %w", err)
	}
	return nil
}

// Append adds emb to id's collection, creating it if absent, and persists the change.
// No deduplication is performed. If persisting fails the append is rolled back.
func (s *IdentityStore) Append(ctx context.Context, id facematch.Identity, emb facematch.Embedding) error {
	if len(emb) == 0 {
		return goerr.Wrap(facematch.ErrInvalidInput, "embedding is empty", goerr.V("identity", id))
	}
	cp := slices.Clone(emb)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dim != 0 && len(cp) != s.dim {
		return goerr.Wrap(facematch.ErrInvalidInput, "embedding dimension does not match store",
			goerr.V("identity", id), goerr.V("dim", len(cp)), goerr.V("store_dim", s.dim))
	}

	prev, existed := s.data[id]
	// Clip forces a fresh backing array so snapshots taken earlier stay untouched.
	s.data[id] = append(slices.Clip(prev), cp)
	prevDim := s.dim
	s.dim = len(cp)

	if err := s.persistAppend(ctx, id, cp); err != nil {
		if existed {
			s.data[id] = prev
		} else {
			delete(s.data, id)
		}
		s.dim = prevDim
		return fmt.Errorf("persisting embedding for identity %d: %w", id, err)
	}

	if s.index != nil {
		if err := s.index.Add(id, cp); err != nil {
			s.logger.Warn("failed to index embedding", slog.Int64("identity", int64(id)), slog.Any("error", err))
		}
	}
	return nil
}

func (s *IdentityStore) persistAppend(ctx context.Context, id facematch.Identity, emb facematch.Embedding) error {
	if inc, ok := s.persister.(IncrementalPersister); ok {
		return inc.Append(ctx, id, emb)
	}
	return s.persister.Save(ctx, s.data)
}

// Reset clears every identity and persists the empty store. Reset is idempotent.
func (s *IdentityStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, prevDim := s.data, s.dim
	s.data = Collections{}
	s.dim = 0

	if err := s.clearPersisted(ctx); err != nil {
		s.data, s.dim = prev, prevDim
		return fmt.Errorf("resetting identity store: %w", err)
	}

	if s.index != nil {
		s.index.Reset()
	}
	return nil
}

// clearPersisted removes every persisted embedding.
func (s *IdentityStore) clearPersisted(ctx context.Context) error {
	if inc, ok := s.persister.(IncrementalPersister); ok {
		return inc.Reset(ctx)
	}
	return s.persister.Save(ctx, Collections{})
}

// NearestDistance returns the minimum distance between emb and id's stored embeddings.
func (s *IdentityStore) NearestDistance(id facematch.Identity, emb facematch.Embedding) (float64, error) {
	s.mu.RLock()
	embs := s.data[id]
	s.mu.RUnlock()
	return nearestDistance(id, embs, emb)
}

// Snapshot returns a consistent read-only view of the current contents.
func (s *IdentityStore) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &Snapshot{data: s.data.Clone()}
}

// Recognize runs m against a snapshot of the store.
func (s *IdentityStore) Recognize(ctx context.Context, m *facematch.Matcher, batch []facematch.Embedding) (facematch.IdentitySet, []facematch.Match, error) {
	snap := s.Snapshot()
	matches, err := m.Assign(ctx, snap, batch)
	if err != nil {
		return nil, nil, err
	}
	set := make(facematch.IdentitySet, len(matches))
	for _, match := range matches {
		set[match.Identity] = struct{}{}
	}
	return set, matches, nil
}

// Identities returns all identities with stored embeddings in ascending order.
func (s *IdentityStore) Identities() []facematch.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Identities()
}

// Summaries returns the embedding count of every identity.
func (s *IdentityStore) Summaries() []IdentitySummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.data.Identities()
	out := make([]IdentitySummary, len(ids))
	for i, id := range ids {
		out[i] = IdentitySummary{Identity: id, Embeddings: len(s.data[id])}
	}
	return out
}

// Embeddings returns id's collection in insertion order.
func (s *IdentityStore) Embeddings(id facematch.Identity) []facematch.Embedding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.data[id])
}

// Count returns the total number of stored embeddings.
func (s *IdentityStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Len()
}

// Index returns the attached embedding index, or nil.
func (s *IdentityStore) Index() *EmbeddingIndex {
	return s.index
}

// Close closes the persister.
func (s *IdentityStore) Close() error {
	if err := s.persister.Close(); err != nil {
		return fmt.Errorf("closing identity store: %w", err)
	}
	return nil
}

// Snapshot is an immutable view of an IdentityStore. It implements facematch.Gallery.
type Snapshot struct {
	data Collections
}

// Identities returns all identities with stored embeddings in ascending order.
func (s *Snapshot) Identities() []facematch.Identity {
	return s.data.Identities()
}

// NearestDistance returns the minimum distance between emb and id's stored embeddings.
func (s *Snapshot) NearestDistance(id facematch.Identity, emb facematch.Embedding) (float64, error) {
	return nearestDistance(id, s.data[id], emb)
}

// Embeddings returns id's collection.
func (s *Snapshot) Embeddings(id facematch.Identity) []facematch.Embedding {
	return s.data[id]
}

// Len returns the total number of embeddings in the snapshot.
func (s *Snapshot) Len() int {
	return s.data.Len()
}

func nearestDistance(id facematch.Identity, embs []facematch.Embedding, emb facematch.Embedding) (float64, error) {
	if len(embs) == 0 {
		return 0, goerr.Wrap(facematch.ErrUnknownIdentity, "no embeddings stored", goerr.V("identity", id))
	}
	return facematch.NearestDistance(embs, emb)
}

// dimensionOf returns the dimension of the first embedding found, or 0.
func dimensionOf(data Collections) int {
	for _, embs := range data {
		if len(embs) > 0 {
			return len(embs[0])
		}
	}
	return 0
}
