// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/kozaktomas/facecluster/internal/database"
	"github.com/kozaktomas/facecluster/internal/facematch"
)

// MockPersister is an in-memory database.Persister with error injection.
type MockPersister struct {
	mu   sync.RWMutex
	data database.Collections

	// Error injection
	LoadError  error
	SaveError  error
	CloseError error

	// Call counters
	LoadCalls int
	SaveCalls int
}

// NewMockPersister creates a new mock persister holding data.
func NewMockPersister(data database.Collections) *MockPersister {
	if data == nil {
		data = database.Collections{}
	}
	return &MockPersister{data: deepCopy(data)}
}

// Load returns a copy of the persisted mapping.
func (m *MockPersister) Load(ctx context.Context) (database.Collections, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LoadCalls++
	if m.LoadError != nil {
		return nil, m.LoadError
	}
	return deepCopy(m.data), nil
}

// Save replaces the persisted mapping with a copy of data.
func (m *MockPersister) Save(ctx context.Context, data database.Collections) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++
	if m.SaveError != nil {
		return m.SaveError
	}
	m.data = deepCopy(data)
	return nil
}

// Close returns CloseError.
func (m *MockPersister) Close() error {
	return m.CloseError
}

// Persisted returns a copy of what has been saved so far.
func (m *MockPersister) Persisted() database.Collections {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return deepCopy(m.data)
}

// MockIncrementalPersister additionally implements database.IncrementalPersister.
type MockIncrementalPersister struct {
	MockPersister

	AppendError error
	ResetError  error

	AppendCalls int
	ResetCalls  int
}

// NewMockIncrementalPersister creates a new incremental mock persister holding data.
func NewMockIncrementalPersister(data database.Collections) *MockIncrementalPersister {
	if data == nil {
		data = database.Collections{}
	}
	m := &MockIncrementalPersister{}
	m.data = deepCopy(data)
	return m
}

// Append persists a single embedding.
func (m *MockIncrementalPersister) Append(ctx context.Context, id facematch.Identity, emb facematch.Embedding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AppendCalls++
	if m.AppendError != nil {
		return m.AppendError
	}
	m.data[id] = append(m.data[id], slices.Clone(emb))
	return nil
}

// Reset drops every persisted embedding.
func (m *MockIncrementalPersister) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResetCalls++
	if m.ResetError != nil {
		return m.ResetError
	}
	m.data = database.Collections{}
	return nil
}

func deepCopy(data database.Collections) database.Collections {
	out := make(database.Collections, len(data))
	for id, embs := range data {
		cp := make([]facematch.Embedding, len(embs))
		for i, e := range embs {
			cp[i] = slices.Clone(e)
		}
		out[id] = cp
	}
	return out
}
