package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/kozaktomas/facecluster/internal/constants"
	"github.com/kozaktomas/facecluster/internal/facematch"
	"github.com/kozaktomas/facecluster/internal/oracle"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusForError maps domain errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, facematch.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, facematch.ErrUnknownIdentity):
		return http.StatusNotFound
	case errors.Is(err, oracle.ErrNoFace):
		return http.StatusUnprocessableEntity
	case errors.Is(err, facematch.ErrOracleFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondDomainError logs err and sends it with the status matching its kind.
// Internal errors are not echoed to the client.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	slog.Warn("request failed",
		slog.String("path", sanitizeForLog(r.URL.Path)),
		slog.Int("status", status),
		slog.Any("error", err))
	respondError(w, status, message)
}

// isMultipart reports whether the request carries a multipart form.
func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mediaType, "multipart/")
}

// decodeJSON decodes a size-limited JSON request body into target.
func decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxJSONBodySize)
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return fmt.Errorf("%s: %w", errInvalidRequestBody, err)
	}
	return nil
}

// readImageUpload reads the multipart "file" field and checks its extension.
func readImageUpload(r *http.Request) ([]byte, error) {
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		return nil, fmt.Errorf("failed to parse multipart form: %w", facematch.ErrInvalidInput)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("file is required: %w", facematch.ErrInvalidInput)
	}
	defer file.Close()

	if err := oracle.ValidateImageName(header.Filename); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// toEmbeddings converts raw JSON vectors into embeddings.
func toEmbeddings(vecs [][]float32) []facematch.Embedding {
	out := make([]facematch.Embedding, len(vecs))
	for i, v := range vecs {
		out[i] = facematch.Embedding(v)
	}
	return out
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
