// Package badger stores identity embeddings in an embedded BadgerDB.
//
// Every embedding is one key, identity:<id>:<seq>, whose value is the msgpack encoded
// vector. seq is a zero-padded store-wide counter so a prefix scan returns each
// collection in insertion order.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/m-mizutani/goerr/v2"

	"github.com/kozaktomas/facecluster/internal/config"
	"github.com/kozaktomas/facecluster/internal/database"
	"github.com/kozaktomas/facecluster/internal/facematch"
)

// BackendName is the store backend name selected with STORE_BACKEND=badger.
const BackendName = "badger"

const keyPrefix = "identity:"

// Store is a database.IncrementalPersister backed by BadgerDB v4.
type Store struct {
	db *badger.DB

	mu   sync.Mutex
	next uint64
}

// Options configures the BadgerDB store.
type Options struct {
	// Dir is the directory for BadgerDB data files. Required unless InMemory is set.
	Dir string

	// InMemory runs BadgerDB without disk persistence.
	InMemory bool
}

// New opens a BadgerDB-backed store.
func New(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("badger store directory is required")
	}
	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(slogLogger{})
	if opts.InMemory {
		dbOpts = dbOpts.WithDir("").WithValueDir("").WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("opening badger: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSequence(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Open is the database.BackendFactory for the badger backend; cfg.Path is the data directory.
func Open(_ context.Context, cfg *config.StoreConfig) (database.Persister, error) {
	return New(Options{Dir: cfg.Path})
}

// Register makes the badger backend available to database.Open.
func Register() {
	database.RegisterBackend(BackendName, Open)
}

func encodeKey(id facematch.Identity, seq uint64) []byte {
	return fmt.Appendf(nil, "%s%d:%020d", keyPrefix, int64(id), seq)
}

func decodeKey(key []byte) (facematch.Identity, uint64, error) {
	rest, ok := strings.CutPrefix(string(key), keyPrefix)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected key %q", key)
	}
	idPart, seqPart, ok := strings.Cut(rest, ":")
	if !ok {
		return 0, 0, fmt.Errorf("malformed key %q", key)
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed identity in key %q: %w", key, err)
	}
	seq, err := strconv.ParseUint(seqPart, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed sequence in key %q: %w", key, err)
	}
	return facematch.Identity(id), seq, nil
}

// initSequence positions the counter after the highest stored sequence. Malformed keys
// are skipped here; Load reports them as corruption.
func (s *Store) initSequence() error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			_, seq, err := decodeKey(it.Item().Key())
			if err != nil {
				slog.Debug("skipping malformed badger key", slog.Any("error", err))
				continue
			}
			if seq >= s.next {
				s.next = seq + 1
			}
		}
		return nil
	})
}

// Load reads every embedding grouped by identity, in insertion order.
func (s *Store) Load(_ context.Context) (database.Collections, error) {
	out := database.Collections{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			item := it.Item()
			id, _, err := decodeKey(item.Key())
			if err != nil {
				return goerr.Wrap(facematch.ErrStoreCorrupt, "decoding badger key", goerr.V("cause", err.Error()))
			}
			val, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("reading badger value: %w", err)
			}
			emb, err := database.UnmarshalEmbedding(val)
			if err != nil {
				return goerr.Wrap(facematch.ErrStoreCorrupt, "decoding embedding",
					goerr.V("identity", id), goerr.V("cause", err.Error()))
			}
			out[id] = append(out[id], emb)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Save replaces every stored embedding with data.
func (s *Store) Save(_ context.Context, data database.Collections) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DropPrefix([]byte(keyPrefix)); err != nil {
		return fmt.Errorf("dropping identities: %w", err)
	}
	s.next = 0

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, id := range data.Identities() {
		for _, emb := range data[id] {
			val, err := database.MarshalEmbedding(emb)
			if err != nil {
				return err
			}
			if err := wb.Set(encodeKey(id, s.next), val); err != nil {
				return fmt.Errorf("writing embedding: %w", err)
			}
			s.next++
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flushing identities: %w", err)
	}
	return nil
}

// Append writes a single embedding for id.
func (s *Store) Append(_ context.Context, id facematch.Identity, emb facematch.Embedding) error {
	val, err := database.MarshalEmbedding(emb)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := encodeKey(id, s.next)
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	}); err != nil {
		return fmt.Errorf("writing embedding for identity %d: %w", id, err)
	}
	s.next++
	return nil
}

// Reset drops every stored embedding.
func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.DropPrefix([]byte(keyPrefix)); err != nil {
		return fmt.Errorf("dropping identities: %w", err)
	}
	s.next = 0
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing badger: %w", err)
	}
	return nil
}

var _ database.IncrementalPersister = (*Store)(nil)

// slogLogger routes badger warnings and errors to slog and drops the chatty levels.
type slogLogger struct{}

func (slogLogger) Errorf(f string, v ...any) {
	slog.Error(strings.TrimSpace(fmt.Sprintf(f, v...)), slog.String("component", "badger"))
}

func (slogLogger) Warningf(f string, v ...any) {
	slog.Warn(strings.TrimSpace(fmt.Sprintf(f, v...)), slog.String("component", "badger"))
}

func (slogLogger) Infof(string, ...any)  {}
func (slogLogger) Debugf(string, ...any) {}
