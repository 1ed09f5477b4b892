package facematch

import (
	"context"
	"errors"
	"slices"
	"testing"
)

// mapGallery is a Gallery over a plain map.
type mapGallery map[Identity][]Embedding

func (g mapGallery) Identities() []Identity {
	ids := make([]Identity, 0, len(g))
	for id, embs := range g {
		if len(embs) > 0 {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

func (g mapGallery) NearestDistance(id Identity, emb Embedding) (float64, error) {
	return NearestDistance(g[id], emb)
}

func TestRecognize_Scenarios(t *testing.T) {
	tests := []struct {
		name    string
		gallery mapGallery
		batch   []Embedding
		want    []Identity
	}{
		{
			name:    "close detection is recognized",
			gallery: mapGallery{42: {{0, 0}}},
			batch:   []Embedding{{0.1, 0}},
			want:    []Identity{42},
		},
		{
			name:    "empty store recognizes nothing",
			gallery: mapGallery{},
			batch:   []Embedding{{0.1, 0}},
			want:    []Identity{},
		},
		{
			name:    "empty batch recognizes nothing",
			gallery: mapGallery{42: {{0, 0}}},
			batch:   nil,
			want:    []Identity{},
		},
		{
			name:    "just below threshold",
			gallery: mapGallery{1: {{0, 0}}},
			batch:   []Embedding{{0.49, 0}},
			want:    []Identity{1},
		},
		{
			name:    "exactly at threshold is rejected",
			gallery: mapGallery{1: {{0, 0}}},
			batch:   []Embedding{{0.5, 0}},
			want:    []Identity{},
		},
		{
			name:    "far detection is dropped silently",
			gallery: mapGallery{1: {{0, 0}}},
			batch:   []Embedding{{3, 4}},
			want:    []Identity{},
		},
		{
			name:    "nearest of many stored embeddings counts",
			gallery: mapGallery{1: {{5, 5}, {0, 0}, {9, 9}}},
			batch:   []Embedding{{0, 0.2}},
			want:    []Identity{1},
		},
		{
			name:    "two people in one photo",
			gallery: mapGallery{1: {{0, 0}}, 2: {{10, 10}}},
			batch:   []Embedding{{10, 10.1}, {0.1, 0}},
			want:    []Identity{1, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Recognize(context.Background(), tt.gallery, tt.batch)
			if err != nil {
				t.Fatalf("Recognize() unexpected error: %v", err)
			}
			if !slices.Equal(got.Sorted(), tt.want) {
				t.Errorf("Recognize() = %v, want %v", got.Sorted(), tt.want)
			}
		})
	}
}

func TestRecognize_AtMostOneIdentityPerDetection(t *testing.T) {
	// Both identities are within threshold of the single detection.
	gallery := mapGallery{
		1: {{0, 0}},
		2: {{0.3, 0}},
	}
	got, err := Recognize(context.Background(), gallery, []Embedding{{0.1, 0}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || !got.Has(1) {
		t.Errorf("expected only identity 1, got %v", got.Sorted())
	}
}

func TestAssign_OneIdentityFromManyDetections(t *testing.T) {
	gallery := mapGallery{7: {{0, 0}}}
	batch := []Embedding{{0.1, 0}, {0, 0.2}}

	m := &Matcher{}
	matches, err := m.Assign(context.Background(), gallery, batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected both detections to be consumed, got %d matches", len(matches))
	}
	for i, match := range matches {
		if match.Detection != i || match.Identity != 7 {
			t.Errorf("match %d = %+v, want detection %d credited to 7", i, match, i)
		}
	}

	set, err := m.Recognize(context.Background(), gallery, batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(set.Sorted(), []Identity{7}) {
		t.Errorf("Recognize() = %v, want [7]", set.Sorted())
	}
}

func TestAssign_BestCandidatePerDetection(t *testing.T) {
	gallery := mapGallery{
		1: {{0, 0}},
		2: {{1, 0}},
	}
	// Detection 0 is closer to 2, detection 1 is closer to 1, detection 2 matches nothing.
	batch := []Embedding{{0.8, 0}, {0.3, 0}, {5, 5}}

	matches, err := (&Matcher{Workers: 1}).Assign(context.Background(), gallery, batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %+v", matches)
	}
	if matches[0].Detection != 0 || matches[0].Identity != 2 {
		t.Errorf("matches[0] = %+v, want detection 0 -> identity 2", matches[0])
	}
	if matches[1].Detection != 1 || matches[1].Identity != 1 {
		t.Errorf("matches[1] = %+v, want detection 1 -> identity 1", matches[1])
	}
}

func TestAssign_TieKeepsLowestIdentity(t *testing.T) {
	gallery := mapGallery{
		9: {{0.2, 0}},
		3: {{-0.2, 0}},
	}
	matches, err := (&Matcher{}).Assign(context.Background(), gallery, []Embedding{{0, 0}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 || matches[0].Identity != 3 {
		t.Errorf("expected tie to resolve to identity 3, got %+v", matches)
	}
}

func TestMatcher_CustomThreshold(t *testing.T) {
	gallery := mapGallery{1: {{0, 0}}}
	batch := []Embedding{{0.3, 0}}

	strict, err := NewMatcher(0.2).Recognize(context.Background(), gallery, batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(strict) != 0 {
		t.Errorf("strict matcher should not recognize, got %v", strict.Sorted())
	}

	loose, err := NewMatcher(0.6).Recognize(context.Background(), gallery, batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !loose.Has(1) {
		t.Errorf("loose matcher should recognize identity 1")
	}
}

func TestMatcher_Errors(t *testing.T) {
	gallery := mapGallery{1: {{0, 0}}}

	t.Run("negative threshold", func(t *testing.T) {
		_, err := NewMatcher(-1).Recognize(context.Background(), gallery, []Embedding{{0, 0}})
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := Recognize(context.Background(), gallery, []Embedding{{0, 0, 0}})
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Recognize(ctx, gallery, []Embedding{{0, 0}})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestIdentitySet_Sorted(t *testing.T) {
	set := IdentitySet{5: {}, 1: {}, 3: {}}
	if got := set.Sorted(); !slices.Equal(got, []Identity{1, 3, 5}) {
		t.Errorf("Sorted() = %v", got)
	}
	if set.Has(2) {
		t.Error("Has(2) should be false")
	}
}
