package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/facecluster/internal/config"
	"github.com/kozaktomas/facecluster/internal/database"
	"github.com/kozaktomas/facecluster/internal/database/mock"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := database.NewIdentityStore(mock.NewMockPersister(nil), database.WithIndex(database.NewEmbeddingIndex()))
	require.NoError(t, store.Load(context.Background()))
	return NewServer(config.Defaults(), store, nil)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	s.Router().ServeHTTP(recorder, req)
	return recorder
}

func TestServer_AssociateRecognizeReset(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/identities/42/embeddings", `{"embedding":[0,0]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/api/v1/recognize", `{"embeddings":[[0.1,0],[5,5]]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var recognized struct {
		Identities []int64 `json:"identities"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recognized))
	require.Equal(t, []int64{42}, recognized.Identities)

	rec = do(t, s, http.MethodPost, "/api/v1/search", `{"embedding":[0,0.1],"k":3}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, s, http.MethodDelete, "/api/v1/identities", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/recognize", `{"embeddings":[[0.1,0]]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recognized))
	require.Empty(t, recognized.Identities)
}

func TestServer_ClusterAndConfig(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/v1/cluster", `{"embeddings":[[0,0],[0.1,0],[5,5]]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var clustered struct {
		Clusters []struct {
			Indices []int `json:"indices"`
		} `json:"clusters"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &clustered))
	require.Len(t, clustered.Clusters, 2)

	rec = do(t, s, http.MethodGet, "/api/v1/config", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/v1/unknown", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
