package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/kozaktomas/facecluster/internal/facematch"
)

// FilePersister keeps the whole identity store in a single zstd-compressed msgpack file.
type FilePersister struct {
	path string
}

// NewFilePersister creates a persister for the file at path.
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

// Path returns the store file path.
func (p *FilePersister) Path() string {
	return p.path
}

// Load reads the store file. A missing file yields an empty mapping.
func (p *FilePersister) Load(_ context.Context) (Collections, error) {
	blob, err := os.ReadFile(p.path) //nolint:gosec // path is from trusted config
	if errors.Is(err, os.ErrNotExist) {
		return Collections{}, nil
	}
	if err != nil {
		return nil, goerr.Wrap(facematch.ErrStoreCorrupt, "reading identity store",
			goerr.V("path", p.path), goerr.V("cause", err.Error()))
	}
	data, err := decodeCollections(blob)
	if err != nil {
		return nil, goerr.Wrap(facematch.ErrStoreCorrupt, "parsing identity store",
			goerr.V("path", p.path), goerr.V("cause", err.Error()))
	}
	return data, nil
}

// Save atomically replaces the store file: the snapshot is written to a temporary file
// in the same directory, synced and renamed over the previous file.
func (p *FilePersister) Save(_ context.Context, data Collections) error {
	blob, err := encodeCollections(data, storeFile{SavedAt: time.Now().UTC()})
	if err != nil {
		return err
	}

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(p.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temporary store file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(blob); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("writing identity store: %w", err)
	}
	if err := tmp.Chmod(storeFileMode); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("setting store file mode: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("syncing identity store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("closing identity store: %w", err)
	}
	if err := os.Rename(tmpName, p.path); err != nil {
		cleanup()
		return fmt.Errorf("replacing identity store: %w", err)
	}
	return nil
}

// Close is a no-op; the file is only open during Load and Save.
func (p *FilePersister) Close() error {
	return nil
}
