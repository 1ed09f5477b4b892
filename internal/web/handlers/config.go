package handlers

import (
	"net/http"

	"github.com/kozaktomas/facecluster/internal/config"
	"github.com/kozaktomas/facecluster/internal/database"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	StoreBackend      string   `json:"store_backend"`
	AvailableBackends []string `json:"available_backends"`
	EmbeddingURL      string   `json:"embedding_url"`
	MatchThreshold    float64  `json:"match_threshold"`
	ClusterEps        float64  `json:"cluster_eps"`
	ClusterMinPts     int      `json:"cluster_min_pts"`
}

// Get returns the effective matching and clustering settings
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	backend := h.config.Store.Backend
	if backend == "" {
		backend = database.BackendFile
	}

	respondJSON(w, http.StatusOK, ConfigResponse{
		StoreBackend:      backend,
		AvailableBackends: database.Backends(),
		EmbeddingURL:      h.config.Embedding.URL,
		MatchThreshold:    h.config.Match.Threshold,
		ClusterEps:        h.config.Cluster.Eps,
		ClusterMinPts:     h.config.Cluster.MinPts,
	})
}
