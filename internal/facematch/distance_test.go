package facematch

import (
	"errors"
	"math"
	"testing"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name     string
		a        Embedding
		b        Embedding
		expected float64
	}{
		{"identical", Embedding{1, 2, 3}, Embedding{1, 2, 3}, 0},
		{"unit axis", Embedding{0, 0}, Embedding{1, 0}, 1},
		{"3-4-5", Embedding{0, 0}, Embedding{3, 4}, 5},
		{"negative coordinates", Embedding{-1, -1}, Embedding{2, 3}, 5},
		{"empty", Embedding{}, Embedding{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Distance(tt.a, tt.b)
			if err != nil {
				t.Fatalf("Distance() unexpected error: %v", err)
			}
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("Distance(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.expected)
			}
			back, _ := Distance(tt.b, tt.a)
			if back != got {
				t.Errorf("Distance is not symmetric: %v vs %v", got, back)
			}
		})
	}
}

func TestDistance_DimensionMismatch(t *testing.T) {
	_, err := Distance(Embedding{1, 2}, Embedding{1, 2, 3})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestNearestDistance(t *testing.T) {
	candidates := []Embedding{{0, 0}, {3, 4}, {1, 0}}

	got, err := NearestDistance(candidates, Embedding{1, 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got-1) > 1e-9 {
		t.Errorf("NearestDistance = %v, want 1", got)
	}

	if _, err := NearestDistance(nil, Embedding{1, 1}); !errors.Is(err, ErrUnknownIdentity) {
		t.Errorf("expected ErrUnknownIdentity for empty candidates, got %v", err)
	}
	if _, err := NearestDistance(candidates, Embedding{1}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for mismatched dims, got %v", err)
	}
}
