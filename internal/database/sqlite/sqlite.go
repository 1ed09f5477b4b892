// Package sqlite stores identity embeddings in a single SQLite database file using the
// pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	"github.com/m-mizutani/goerr/v2"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/kozaktomas/facecluster/internal/config"
	"github.com/kozaktomas/facecluster/internal/database"
	"github.com/kozaktomas/facecluster/internal/facematch"
)

// BackendName is the store backend name selected with STORE_BACKEND=sqlite.
const BackendName = "sqlite"

const schema = `
CREATE TABLE IF NOT EXISTS identity_embeddings (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	identity   INTEGER NOT NULL,
	dim        INTEGER NOT NULL,
	embedding  BLOB    NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_identity_embeddings_identity ON identity_embeddings (identity, id);
`

// Store is a database.IncrementalPersister backed by SQLite.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the SQLite database at path.
func New(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite database path is required")
	}

	// busy_timeout: wait for a lock instead of failing immediately
	// journal_mode(WAL): readers do not block the writer
	dsn := "file:" + path + "?" + url.Values{
		"_pragma": []string{"busy_timeout(5000)", "journal_mode(WAL)", "synchronous(NORMAL)"},
	}.Encode()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return &Store{db: db}, nil
}

// Open is the database.BackendFactory for the sqlite backend; cfg.Path is the database file.
func Open(ctx context.Context, cfg *config.StoreConfig) (database.Persister, error) {
	return New(ctx, cfg.Path)
}

// Register makes the sqlite backend available to database.Open.
func Register() {
	database.RegisterBackend(BackendName, Open)
}

// Load reads every stored embedding grouped by identity, in insertion order.
func (s *Store) Load(ctx context.Context) (database.Collections, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT identity, dim, embedding FROM identity_embeddings ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query identity embeddings: %w", err)
	}
	defer rows.Close()

	out := database.Collections{}
	for rows.Next() {
		var id int64
		var dim int
		var blob []byte
		if err := rows.Scan(&id, &dim, &blob); err != nil {
			return nil, fmt.Errorf("scan identity embedding: %w", err)
		}
		emb, err := database.UnmarshalEmbedding(blob)
		if err != nil || len(emb) != dim {
			return nil, goerr.Wrap(facematch.ErrStoreCorrupt, "decoding embedding",
				goerr.V("identity", id), goerr.V("dim", dim))
		}
		out[facematch.Identity(id)] = append(out[facematch.Identity(id)], emb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identity embeddings: %w", err)
	}
	return out, nil
}

// Save replaces the table contents with data in a single transaction.
func (s *Store) Save(ctx context.Context, data database.Collections) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM identity_embeddings"); err != nil {
		return fmt.Errorf("delete identity embeddings: %w", err)
	}
	for _, id := range data.Identities() {
		for _, emb := range data[id] {
			if err := insert(ctx, tx, id, emb); err != nil {
				return err
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Append inserts a single embedding for id.
func (s *Store) Append(ctx context.Context, id facematch.Identity, emb facematch.Embedding) error {
	return insert(ctx, s.db, id, emb)
}

// Reset deletes every stored embedding.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM identity_embeddings"); err != nil {
		return fmt.Errorf("delete identity embeddings: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing sqlite: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insert(ctx context.Context, db execer, id facematch.Identity, emb facematch.Embedding) error {
	blob, err := database.MarshalEmbedding(emb)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		"INSERT INTO identity_embeddings (identity, dim, embedding) VALUES (?, ?, ?)",
		int64(id), len(emb), blob)
	if err != nil {
		return fmt.Errorf("insert embedding for identity %d: %w", id, err)
	}
	return nil
}

var _ database.IncrementalPersister = (*Store)(nil)
