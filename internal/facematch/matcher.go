package facematch

import (
	"context"
	"math"
	"runtime"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"
)

// Matcher assigns detections to known identities.
// The zero value uses DefaultThreshold and one worker per CPU.
type Matcher struct {
	// Threshold is the exclusive upper bound on accepted distances.
	Threshold float64
	// Workers bounds how many detections are scored concurrently.
	Workers int
}

// NewMatcher creates a matcher with the given acceptance threshold.
func NewMatcher(threshold float64) *Matcher {
	return &Matcher{Threshold: threshold}
}

func (m *Matcher) threshold() (float64, error) {
	if m == nil || m.Threshold == 0 {
		return DefaultThreshold, nil
	}
	if m.Threshold < 0 || math.IsNaN(m.Threshold) {
		return 0, goerr.Wrap(ErrInvalidInput, "threshold must be positive", goerr.V("threshold", m.Threshold))
	}
	return m.Threshold, nil
}

func (m *Matcher) workers() int {
	if m == nil || m.Workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return m.Workers
}

// Recognize returns the distinct identities recognized in batch.
func (m *Matcher) Recognize(ctx context.Context, gallery Gallery, batch []Embedding) (IdentitySet, error) {
	matches, err := m.Assign(ctx, gallery, batch)
	if err != nil {
		return nil, err
	}
	set := make(IdentitySet, len(matches))
	for _, match := range matches {
		set[match.Identity] = struct{}{}
	}
	return set, nil
}

// Assign returns the accepted matches ordered by detection index.
//
// Every detection gets at most one tentative match: the identity with the smallest
// nearest distance. Tentative matches from the whole batch are then accepted greedily
// in ascending distance order. A detection is credited to at most one identity, while
// one identity may be credited from several detections.
func (m *Matcher) Assign(ctx context.Context, gallery Gallery, batch []Embedding) ([]Match, error) {
	threshold, err := m.threshold()
	if err != nil {
		return nil, err
	}
	if len(batch) == 0 || gallery == nil {
		return []Match{}, nil
	}
	ids := gallery.Identities()
	if len(ids) == 0 {
		return []Match{}, nil
	}

	candidates, err := m.candidates(ctx, gallery, ids, batch)
	if err != nil {
		return nil, err
	}

	queue := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		if c != nil {
			queue = append(queue, *c)
		}
	}
	sort.SliceStable(queue, func(i, j int) bool {
		return queue[i].Distance < queue[j].Distance
	})

	consumed := make(map[int]bool, len(queue))
	accepted := make([]Match, 0, len(queue))
	for _, c := range queue {
		if consumed[c.Detection] || c.Distance >= threshold {
			continue
		}
		consumed[c.Detection] = true
		accepted = append(accepted, c)
	}

	sort.Slice(accepted, func(i, j int) bool {
		return accepted[i].Detection < accepted[j].Detection
	})
	return accepted, nil
}

// candidates computes the best candidate for every detection. Slot i is nil when
// detection i has no candidate.
func (m *Matcher) candidates(ctx context.Context, gallery Gallery, ids []Identity, batch []Embedding) ([]*Match, error) {
	out := make([]*Match, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers())
	for i, emb := range batch {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			best, err := bestCandidate(gallery, ids, i, emb)
			if err != nil {
				return err
			}
			out[i] = best
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// bestCandidate returns the identity nearest to emb. Ties keep the first identity in ids order.
func bestCandidate(gallery Gallery, ids []Identity, detection int, emb Embedding) (*Match, error) {
	var best *Match
	for _, id := range ids {
		d, err := gallery.NearestDistance(id, emb)
		if err != nil {
			return nil, goerr.Wrap(err, "scoring detection", goerr.V("detection", detection), goerr.V("identity", id))
		}
		if best == nil || d < best.Distance {
			best = &Match{Detection: detection, Identity: id, Distance: d}
		}
	}
	return best, nil
}

// Recognize is a convenience wrapper using DefaultThreshold.
func Recognize(ctx context.Context, gallery Gallery, batch []Embedding) (IdentitySet, error) {
	return (&Matcher{}).Recognize(ctx, gallery, batch)
}
