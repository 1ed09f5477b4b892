package cmd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/kozaktomas/facecluster/internal/facematch"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(name), 0o600); err != nil {
			t.Fatal(err)
		}
	}
}

func TestCollectImagePaths(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.jpg", "b.PNG", "notes.txt", "nested/c.jpeg", "nested/d.gif")

	paths, err := collectImagePaths([]string{dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		filepath.Join(dir, "a.jpg"),
		filepath.Join(dir, "b.PNG"),
		filepath.Join(dir, "nested", "c.jpeg"),
	}
	if len(paths) != len(want) {
		t.Fatalf("expected %d paths, got %v", len(want), paths)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("path %d: expected %s, got %s", i, want[i], paths[i])
		}
	}
}

func TestCollectImagePaths_ExplicitFiles(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.jpg", "notes.txt")

	paths, err := collectImagePaths([]string{filepath.Join(dir, "a.jpg")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("expected 1 path, got %v", paths)
	}

	if _, err := collectImagePaths([]string{filepath.Join(dir, "notes.txt")}); !errors.Is(err, facematch.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for a non-image file, got %v", err)
	}
	if _, err := collectImagePaths([]string{filepath.Join(dir, "missing.jpg")}); err == nil {
		t.Error("expected error for a missing file")
	}
}

// pathEncoder returns the faces registered for the file contents, which writeFiles
// sets to the file name.
type pathEncoder struct {
	mu    sync.Mutex
	faces map[string][]facematch.Embedding
	calls int
}

func (e *pathEncoder) DetectAndEncode(_ context.Context, image []byte) ([]facematch.Embedding, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	faces, ok := e.faces[string(image)]
	if !ok {
		return nil, facematch.ErrOracleFailure
	}
	return faces, nil
}

func TestEncodeImages(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "one.jpg", "two.jpg", "broken.jpg", "empty.jpg")

	enc := &pathEncoder{faces: map[string][]facematch.Embedding{
		"one.jpg":   {{0, 0}},
		"two.jpg":   {{1, 0}, {5, 5}},
		"empty.jpg": {},
	}}
	paths := []string{
		filepath.Join(dir, "one.jpg"),
		filepath.Join(dir, "broken.jpg"),
		filepath.Join(dir, "two.jpg"),
		filepath.Join(dir, "empty.jpg"),
	}

	faces, failed, err := encodeImages(context.Background(), enc, paths, 2, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if enc.calls != len(paths) {
		t.Errorf("expected %d encoder calls, got %d", len(paths), enc.calls)
	}
	if len(failed) != 1 || !strings.HasSuffix(failed[0], "broken.jpg") {
		t.Errorf("expected broken.jpg to fail, got %v", failed)
	}

	if len(faces) != 3 {
		t.Fatalf("expected 3 faces, got %d", len(faces))
	}
	// Faces keep input order regardless of which worker finished first.
	if !strings.HasSuffix(faces[0].Path, "one.jpg") || faces[0].Face != 0 {
		t.Errorf("unexpected first face: %+v", faces[0])
	}
	if !strings.HasSuffix(faces[2].Path, "two.jpg") || faces[2].Face != 1 {
		t.Errorf("unexpected last face: %+v", faces[2])
	}
}

func TestClusterFaces(t *testing.T) {
	faces := []detectedFace{
		{Path: "a.jpg", Embedding: facematch.Embedding{10, 10}},
		{Path: "b.jpg", Embedding: facematch.Embedding{0, 0}},
		{Path: "c.jpg", Embedding: facematch.Embedding{0.1, 0}},
		{Path: "d.jpg", Embedding: facematch.Embedding{10.1, 10}},
		{Path: "e.jpg", Embedding: facematch.Embedding{50, 50}},
	}

	t.Run("min pts one has no noise", func(t *testing.T) {
		out, err := clusterFaces(faces, 0.5, 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(out.Noise) != 0 {
			t.Errorf("expected no noise, got %d", len(out.Noise))
		}
		if len(out.Clusters) != 3 {
			t.Fatalf("expected 3 clusters, got %d", len(out.Clusters))
		}
		// Clusters are numbered in order of their first face.
		first := out.Clusters[0]
		if first.Label != 0 || len(first.Faces) != 2 || first.Faces[0].Path != "a.jpg" || first.Faces[1].Path != "d.jpg" {
			t.Errorf("unexpected first cluster: %+v", first)
		}
		if out.Clusters[1].Faces[0].Path != "b.jpg" {
			t.Errorf("unexpected second cluster: %+v", out.Clusters[1])
		}
	})

	t.Run("singletons become noise", func(t *testing.T) {
		out, err := clusterFaces(faces, 0.5, 2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(out.Clusters) != 2 {
			t.Errorf("expected 2 clusters, got %d", len(out.Clusters))
		}
		if len(out.Noise) != 1 || out.Noise[0].Path != "e.jpg" {
			t.Errorf("expected e.jpg as noise, got %+v", out.Noise)
		}
	})

	t.Run("invalid eps", func(t *testing.T) {
		if _, err := clusterFaces(faces, 0, 1); !errors.Is(err, facematch.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("no faces", func(t *testing.T) {
		out, err := clusterFaces(nil, 0.5, 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.Clusters == nil || len(out.Clusters) != 0 || len(out.Noise) != 0 {
			t.Errorf("expected empty result, got %+v", out)
		}
	})
}
