package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/kozaktomas/facecluster/internal/config"
	"github.com/kozaktomas/facecluster/internal/database"
	"github.com/kozaktomas/facecluster/internal/database/badger"
	"github.com/kozaktomas/facecluster/internal/database/postgres"
	"github.com/kozaktomas/facecluster/internal/database/sqlite"
	"github.com/kozaktomas/facecluster/internal/oracle"
)

// registerBackends makes every store backend selectable through STORE_BACKEND.
func registerBackends() {
	badger.Register()
	postgres.Register()
	sqlite.Register()
}

// openStore opens and loads the configured identity store. With withIndex the
// approximate search index is built as well.
func openStore(ctx context.Context, cfg *config.Config, withIndex bool) (*database.IdentityStore, error) {
	registerBackends()

	var opts []database.StoreOption
	if withIndex {
		opts = append(opts, database.WithIndex(database.NewEmbeddingIndex()))
	}
	store, err := database.Open(ctx, &cfg.Store, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open identity store: %w", err)
	}
	return store, nil
}

// newEncoder creates the embedding server client from configuration.
func newEncoder(cfg *config.Config) *oracle.Client {
	return oracle.NewClient(cfg.Embedding.URL,
		oracle.WithMaxImageSize(cfg.Embedding.MaxImageSize),
		oracle.WithTimeout(cfg.Embedding.Timeout()),
	)
}

// readImage validates the file name and reads the image.
func readImage(path string) ([]byte, error) {
	if err := oracle.ValidateImageName(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) //nolint:gosec // user supplied path on the CLI
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return data, nil
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
