package postgres

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/facecluster/internal/database"
	"github.com/kozaktomas/facecluster/internal/facematch"
)

// IdentityRepository stores identity embeddings in the identity_embeddings table, one row
// per embedding. Insertion order is preserved through the serial primary key.
type IdentityRepository struct {
	pool *Pool
}

// NewIdentityRepository creates a new PostgreSQL identity repository.
func NewIdentityRepository(pool *Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

// Load reads every stored embedding grouped by identity.
func (r *IdentityRepository) Load(ctx context.Context) (database.Collections, error) {
	rows, err := r.pool.Query(ctx, "SELECT identity, embedding FROM identity_embeddings ORDER BY identity, id")
	if err != nil {
		return nil, fmt.Errorf("query identity embeddings: %w", err)
	}
	defer rows.Close()

	out := database.Collections{}
	for rows.Next() {
		var id int64
		var vec pgvector.Vector
		if err := rows.Scan(&id, &vec); err != nil {
			return nil, goerr.Wrap(facematch.ErrStoreCorrupt, "scan identity embedding",
				goerr.V("cause", err.Error()))
		}
		out[facematch.Identity(id)] = append(out[facematch.Identity(id)], facematch.Embedding(vec.Slice()))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identity embeddings: %w", err)
	}
	return out, nil
}

// Save replaces the table contents with data in a single transaction.
func (r *IdentityRepository) Save(ctx context.Context, data database.Collections) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM identity_embeddings"); err != nil {
		return fmt.Errorf("delete identity embeddings: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO identity_embeddings (identity, embedding) VALUES ($1, $2::vector)")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, id := range data.Identities() {
		for _, emb := range data[id] {
			if _, err := stmt.ExecContext(ctx, int64(id), pgvector.NewVector(emb)); err != nil {
				return fmt.Errorf("insert embedding for identity %d: %w", id, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Append inserts a single embedding for id.
func (r *IdentityRepository) Append(ctx context.Context, id facematch.Identity, emb facematch.Embedding) error {
	_, err := r.pool.Exec(ctx,
		"INSERT INTO identity_embeddings (identity, embedding) VALUES ($1, $2::vector)",
		int64(id), pgvector.NewVector(emb))
	if err != nil {
		return fmt.Errorf("insert embedding for identity %d: %w", id, err)
	}
	return nil
}

// Reset deletes every stored embedding.
func (r *IdentityRepository) Reset(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, "DELETE FROM identity_embeddings"); err != nil {
		return fmt.Errorf("delete identity embeddings: %w", err)
	}
	return nil
}

// Count returns the number of stored embeddings.
func (r *IdentityRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM identity_embeddings").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count identity embeddings: %w", err)
	}
	return count, nil
}

// Close closes the connection pool.
func (r *IdentityRepository) Close() error {
	return r.pool.Close()
}

var _ database.IncrementalPersister = (*IdentityRepository)(nil)
