package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/facecluster/internal/database"
	"github.com/kozaktomas/facecluster/internal/facematch"
	"github.com/kozaktomas/facecluster/internal/oracle"
)

// IdentitiesHandler handles identity store endpoints
type IdentitiesHandler struct {
	store   *database.IdentityStore
	encoder oracle.Encoder
}

// NewIdentitiesHandler creates a new identities handler
func NewIdentitiesHandler(store *database.IdentityStore, encoder oracle.Encoder) *IdentitiesHandler {
	return &IdentitiesHandler{
		store:   store,
		encoder: encoder,
	}
}

// IdentitiesResponse lists the known identities
type IdentitiesResponse struct {
	Identities []database.IdentitySummary `json:"identities"`
	Embeddings int                        `json:"embeddings"`
}

// AddEmbeddingRequest carries a precomputed embedding
type AddEmbeddingRequest struct {
	Embedding []float32 `json:"embedding"`
}

// AddEmbeddingResponse reports the identity's collection size after the append
type AddEmbeddingResponse struct {
	Identity   facematch.Identity `json:"identity"`
	Embeddings int                `json:"embeddings"`
}

// List returns every identity with its embedding count.
func (h *IdentitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	summaries := h.store.Summaries()
	total := 0
	for _, s := range summaries {
		total += s.Embeddings
	}
	respondJSON(w, http.StatusOK, IdentitiesResponse{
		Identities: summaries,
		Embeddings: total,
	})
}

// AddEmbedding appends an embedding to an identity. The body is either JSON with a
// precomputed embedding or a multipart image, in which case the first detected face is used.
func (h *IdentitiesHandler) AddEmbedding(w http.ResponseWriter, r *http.Request) {
	id, err := facematch.ParseIdentity(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid identity")
		return
	}

	var emb facematch.Embedding
	if isMultipart(r) {
		if h.encoder == nil {
			respondError(w, http.StatusServiceUnavailable, "embedding server not configured")
			return
		}
		image, err := readImageUpload(r)
		if err != nil {
			respondDomainError(w, r, err)
			return
		}
		emb, err = oracle.FirstFace(r.Context(), h.encoder, image)
		if errors.Is(err, oracle.ErrNoFace) {
			respondError(w, http.StatusUnprocessableEntity, "no face found in image")
			return
		}
		if err != nil {
			respondDomainError(w, r, err)
			return
		}
	} else {
		var req AddEmbeddingRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, errInvalidRequestBody)
			return
		}
		emb = facematch.Embedding(req.Embedding)
	}

	if err := h.store.Append(r.Context(), id, emb); err != nil {
		respondDomainError(w, r, err)
		return
	}

	slog.Info("embedding associated", slog.Int64("identity", int64(id)), slog.Int("dim", len(emb)))
	respondJSON(w, http.StatusCreated, AddEmbeddingResponse{
		Identity:   id,
		Embeddings: len(h.store.Embeddings(id)),
	})
}

// Reset drops every identity.
func (h *IdentitiesHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Reset(r.Context()); err != nil {
		respondDomainError(w, r, err)
		return
	}
	slog.Info("identity store reset")
	w.WriteHeader(http.StatusNoContent)
}
