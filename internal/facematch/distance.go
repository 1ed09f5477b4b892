package facematch

import (
	"math"

	"github.com/m-mizutani/goerr/v2"
)

// Distance returns the Euclidean distance between two embeddings.
// Lower means more similar.
func Distance(a, b Embedding) (float64, error) {
	if len(a) != len(b) {
		return 0, goerr.Wrap(ErrInvalidInput, "embedding dimensions differ",
			goerr.V("left_dim", len(a)), goerr.V("right_dim", len(b)))
	}
	return euclidean(a, b), nil
}

// NearestDistance returns the minimum distance between emb and any of candidates.
// Returns ErrUnknownIdentity when candidates is empty.
func NearestDistance(candidates []Embedding, emb Embedding) (float64, error) {
	if len(candidates) == 0 {
		return 0, ErrUnknownIdentity
	}
	best := math.Inf(1)
	for _, c := range candidates {
		d, err := Distance(c, emb)
		if err != nil {
			return 0, err
		}
		if d < best {
			best = d
		}
	}
	return best, nil
}

// euclidean assumes equal lengths.
func euclidean(a, b Embedding) float64 {
	var sum float64
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// sameDim checks that every embedding in batch has the same dimension.
func sameDim(batch []Embedding) error {
	if len(batch) == 0 {
		return nil
	}
	dim := len(batch[0])
	for i, e := range batch {
		if len(e) != dim {
			return goerr.Wrap(ErrInvalidInput, "batch mixes embedding dimensions",
				goerr.V("index", i), goerr.V("dim", len(e)), goerr.V("expected_dim", dim))
		}
	}
	return nil
}
