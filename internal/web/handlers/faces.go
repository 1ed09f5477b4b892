// Package handlers provides HTTP handlers for the web API.
// Handlers are organized by resource:
//   - identities.go: identity store listing, association and reset
//   - faces.go: recognition and nearest-face search
//   - cluster.go: grouping of unlabeled embeddings
//   - config.go: effective matching and clustering settings
package handlers

import (
	"net/http"

	"github.com/kozaktomas/facecluster/internal/constants"
	"github.com/kozaktomas/facecluster/internal/database"
	"github.com/kozaktomas/facecluster/internal/facematch"
	"github.com/kozaktomas/facecluster/internal/oracle"
)

// FacesHandler handles recognition and search endpoints
type FacesHandler struct {
	store   *database.IdentityStore
	matcher *facematch.Matcher
	encoder oracle.Encoder
}

// NewFacesHandler creates a new faces handler
func NewFacesHandler(store *database.IdentityStore, matcher *facematch.Matcher, encoder oracle.Encoder) *FacesHandler {
	return &FacesHandler{
		store:   store,
		matcher: matcher,
		encoder: encoder,
	}
}

// RecognizeRequest carries precomputed detection embeddings
type RecognizeRequest struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// RecognizeResponse lists the recognized identities and the accepted matches
type RecognizeResponse struct {
	Identities []facematch.Identity `json:"identities"`
	Matches    []facematch.Match    `json:"matches"`
	Detections int                  `json:"detections"`
}

// SearchRequest asks for the k stored faces closest to an embedding
type SearchRequest struct {
	Embedding []float32 `json:"embedding"`
	K         int       `json:"k"`
}

// SearchResponse lists the closest stored faces, nearest first
type SearchResponse struct {
	Results []database.IndexHit `json:"results"`
}

// detections returns the batch to work on: embeddings from the JSON body or every face
// found in an uploaded image.
func (h *FacesHandler) detections(w http.ResponseWriter, r *http.Request) ([]facematch.Embedding, bool) {
	if isMultipart(r) {
		if h.encoder == nil {
			respondError(w, http.StatusServiceUnavailable, "embedding server not configured")
			return nil, false
		}
		image, err := readImageUpload(r)
		if err != nil {
			respondDomainError(w, r, err)
			return nil, false
		}
		faces, err := h.encoder.DetectAndEncode(r.Context(), image)
		if err != nil {
			respondDomainError(w, r, err)
			return nil, false
		}
		return faces, true
	}

	var req RecognizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return nil, false
	}
	return toEmbeddings(req.Embeddings), true
}

// Recognize returns the identities present among a batch of detections.
func (h *FacesHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.detections(w, r)
	if !ok {
		return
	}

	set, matches, err := h.store.Recognize(r.Context(), h.matcher, batch)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, RecognizeResponse{
		Identities: set.Sorted(),
		Matches:    matches,
		Detections: len(batch),
	})
}

// Search returns the stored faces closest to an embedding across all identities.
// Results come from the approximate index and are informational only.
func (h *FacesHandler) Search(w http.ResponseWriter, r *http.Request) {
	idx := h.store.Index()
	if idx == nil {
		respondError(w, http.StatusServiceUnavailable, "search index not available")
		return
	}

	var req SearchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.K == 0 {
		req.K = constants.DefaultSearchLimit
	}
	req.K = min(req.K, constants.MaxSearchLimit)

	hits, err := idx.Search(facematch.Embedding(req.Embedding), req.K)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, SearchResponse{Results: hits})
}
