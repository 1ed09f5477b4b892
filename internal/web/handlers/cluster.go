package handlers

import (
	"net/http"

	"github.com/kozaktomas/facecluster/internal/config"
	"github.com/kozaktomas/facecluster/internal/facematch"
)

// ClusterHandler groups unlabeled embeddings
type ClusterHandler struct {
	defaults config.ClusterConfig
}

// NewClusterHandler creates a new cluster handler using cfg for omitted parameters
func NewClusterHandler(cfg config.ClusterConfig) *ClusterHandler {
	return &ClusterHandler{defaults: cfg}
}

// ClusterRequest carries the batch and optional DBSCAN parameters
type ClusterRequest struct {
	Embeddings [][]float32 `json:"embeddings"`
	Eps        *float64    `json:"eps,omitempty"`
	MinPts     *int        `json:"min_pts,omitempty"`
}

// ClusterGroup lists the batch indices sharing a label
type ClusterGroup struct {
	Label   int   `json:"label"`
	Indices []int `json:"indices"`
}

// ClusterResponse is the clustering result; Noise holds indices that belong to no cluster
type ClusterResponse struct {
	Clusters []ClusterGroup `json:"clusters"`
	Noise    []int          `json:"noise"`
	Labels   []int          `json:"labels"`
	Eps      float64        `json:"eps"`
	MinPts   int            `json:"min_pts"`
}

// Cluster runs DBSCAN over the submitted embeddings.
func (h *ClusterHandler) Cluster(w http.ResponseWriter, r *http.Request) {
	var req ClusterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	eps, minPts := h.defaults.Eps, h.defaults.MinPts
	if req.Eps != nil {
		eps = *req.Eps
	}
	if req.MinPts != nil {
		minPts = *req.MinPts
	}

	labels, err := facematch.ClusterLabels(toEmbeddings(req.Embeddings), eps, minPts)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, buildClusterResponse(labels, eps, minPts))
}

// buildClusterResponse groups indices by label; clusters are ordered by their first member.
func buildClusterResponse(labels []int, eps float64, minPts int) ClusterResponse {
	resp := ClusterResponse{
		Clusters: []ClusterGroup{},
		Noise:    []int{},
		Labels:   labels,
		Eps:      eps,
		MinPts:   minPts,
	}
	pos := make(map[int]int)
	for i, label := range labels {
		if label == facematch.NoiseLabel {
			resp.Noise = append(resp.Noise, i)
			continue
		}
		p, ok := pos[label]
		if !ok {
			p = len(resp.Clusters)
			pos[label] = p
			resp.Clusters = append(resp.Clusters, ClusterGroup{Label: label})
		}
		resp.Clusters[p].Indices = append(resp.Clusters[p].Indices, i)
	}
	return resp
}
