package retrieval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vtuberlab/voicebot/internal/config"
)

func newTestEmbedder(t *testing.T, handler http.HandlerFunc) *HTTPEmbedder {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPEmbedder(config.RetrievalConfig{
		EmbedURL:   srv.URL,
		EmbedModel: "intfloat/multilingual-e5-small",
		Timeout:    2 * time.Second,
	})
}

func TestHTTPEmbedder_QueryPrefix(t *testing.T) {
	var got embedRequest
	embedder := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float32{0.1, 0.2}}},
		})
	})

	vec, err := embedder.EmbedQuery(context.Background(), "金門大學在哪裡?")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, vec)
	require.Len(t, got.Input, 1)
	assert.Equal(t, "query: 金門大學在哪裡?", got.Input[0])
	assert.Equal(t, "intfloat/multilingual-e5-small", got.Model)
}

func TestHTTPEmbedder_PassagePrefix(t *testing.T) {
	var got embedRequest
	embedder := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"embedding": []float32{1}},
				{"embedding": []float32{2}},
			},
		})
	})

	vecs, err := embedder.EmbedPassages(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []string{"passage: a", "passage: b"}, got.Input)
}

func TestHTTPEmbedder_ServerError(t *testing.T) {
	embedder := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	})

	_, err := embedder.EmbedQuery(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestHTTPEmbedder_VectorCountMismatch(t *testing.T) {
	embedder := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{}})
	})

	_, err := embedder.EmbedQuery(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0 vectors for 1 inputs")
}
