package facematch

import (
	"math"

	"github.com/m-mizutani/goerr/v2"
)

// unvisited marks points DBSCAN has not labeled yet.
const unvisited = -2

// Cluster partitions batch with DBSCAN under Euclidean distance.
//
// Two embeddings are neighbors when their distance is <= eps, and a point is a core
// point when it has at least minPts neighbors counting itself. Points reachable from
// no core point are returned under NoiseLabel. With minPts == 1 every point is a core
// point, so no noise is produced.
func Cluster(batch []Embedding, eps float64, minPts int) (Clusters, error) {
	labels, err := ClusterLabels(batch, eps, minPts)
	if err != nil {
		return nil, err
	}
	clusters := make(Clusters)
	for i, l := range labels {
		clusters[l] = append(clusters[l], batch[i])
	}
	return clusters, nil
}

// ClusterLabels runs DBSCAN and returns the label of every point in batch order.
func ClusterLabels(batch []Embedding, eps float64, minPts int) ([]int, error) {
	if eps <= 0 || math.IsNaN(eps) || math.IsInf(eps, 0) {
		return nil, goerr.Wrap(ErrInvalidInput, "eps must be a positive number", goerr.V("eps", eps))
	}
	if minPts < 1 {
		return nil, goerr.Wrap(ErrInvalidInput, "minPts must be at least 1", goerr.V("min_pts", minPts))
	}
	if err := sameDim(batch); err != nil {
		return nil, err
	}
	return dbscan(batch, eps, minPts), nil
}

func dbscan(points []Embedding, eps float64, minPts int) []int {
	n := len(points)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = unvisited
	}

	clusterID := -1
	for i := range n {
		if labels[i] != unvisited {
			continue
		}

		neighbors := rangeQuery(points, i, eps)
		if len(neighbors) < minPts {
			labels[i] = NoiseLabel
			continue
		}

		clusterID++
		labels[i] = clusterID

		seed := make([]int, 0, len(neighbors))
		for _, j := range neighbors {
			if j != i {
				seed = append(seed, j)
			}
		}

		for len(seed) > 0 {
			q := seed[0]
			seed = seed[1:]

			// Noise reached from a core point becomes a border point.
			if labels[q] == NoiseLabel {
				labels[q] = clusterID
			}
			if labels[q] != unvisited {
				continue
			}
			labels[q] = clusterID

			qNeighbors := rangeQuery(points, q, eps)
			if len(qNeighbors) >= minPts {
				seed = append(seed, qNeighbors...)
			}
		}
	}
	return labels
}

// rangeQuery returns the indices of all points within eps of points[idx], idx included.
func rangeQuery(points []Embedding, idx int, eps float64) []int {
	var result []int
	q := points[idx]
	for i, p := range points {
		if euclidean(q, p) <= eps {
			result = append(result, i)
		}
	}
	return result
}
