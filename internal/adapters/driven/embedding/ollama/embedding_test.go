package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmbeddingService_Defaults(t *testing.T) {
	s, err := NewEmbeddingService(Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, s.ModelName())
	assert.Equal(t, DefaultDimensions, s.Dimensions())

	_, err = NewEmbeddingService(Config{BaseURL: "://bad"})
	assert.Error(t, err)
}

func TestEmbeddingService_EmbedBatch(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"nomic-embed-text","embeddings":[[0.1,0.2],[0.3,0.4]]}`))
	}))
	defer server.Close()

	s, err := NewEmbeddingService(Config{BaseURL: server.URL, Dimensions: 2})
	require.NoError(t, err)

	items, err := s.EmbedBatch(context.Background(), []string{"a", "b"}, 2)

	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 0, items[0].Index)
	assert.Equal(t, 1, items[1].Index)
	assert.Equal(t, []float32{0.3, 0.4}, items[1].Vector)
	assert.Equal(t, "nomic-embed-text", got["model"])
	assert.Equal(t, []any{"a", "b"}, got["input"])
}

func TestEmbeddingService_EmbedBatch_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[0.1]]}`))
	}))
	defer server.Close()

	s, err := NewEmbeddingService(Config{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = s.EmbedBatch(context.Background(), []string{"a", "b"}, 0)
	assert.ErrorContains(t, err, "expected 2 embeddings")
}

func TestEmbeddingService_EmbedBatch_Empty(t *testing.T) {
	s, err := NewEmbeddingService(Config{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	items, err := s.EmbedBatch(context.Background(), nil, 0)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestEmbeddingService_EmbedBatch_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"missing\" not found"}`))
	}))
	defer server.Close()

	s, err := NewEmbeddingService(Config{BaseURL: server.URL, Model: "missing"})
	require.NoError(t, err)

	_, err = s.EmbedBatch(context.Background(), []string{"a"}, 0)
	assert.ErrorContains(t, err, "not found")
}

func TestEmbeddingService_Ping(t *testing.T) {
	pulled := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			assert.Equal(t, http.MethodHead, r.Method)
			w.WriteHeader(http.StatusOK)
		case "/api/show":
			if !pulled {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"error":"model not found"}`))
				return
			}
			_, _ = w.Write([]byte(`{"modelfile":""}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	s, err := NewEmbeddingService(Config{BaseURL: server.URL})
	require.NoError(t, err)
	assert.NoError(t, s.Ping(context.Background()))

	pulled = false
	err = s.Ping(context.Background())
	assert.ErrorContains(t, err, "ollama pull nomic-embed-text")
}
