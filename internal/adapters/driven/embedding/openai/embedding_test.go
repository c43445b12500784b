package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmbeddingService(t *testing.T) {
	_, err := NewEmbeddingService(Config{})
	assert.Error(t, err)

	s, err := NewEmbeddingService(Config{APIKey: "sk"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, s.ModelName())
	assert.Equal(t, 1536, s.Dimensions())
	assert.False(t, s.shortened)

	large, err := NewEmbeddingService(Config{APIKey: "sk", Model: "text-embedding-3-large", Dimensions: 256})
	require.NoError(t, err)
	assert.Equal(t, 256, large.Dimensions())
	assert.True(t, large.shortened)
}

func TestEmbedBatch_OrdersByIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"first", "second"}, req.Input)
		assert.Zero(t, req.Dimensions)

		_, _ = w.Write([]byte(`{"data":[
			{"index":1,"embedding":[0,1]},
			{"index":0,"embedding":[1,0]}
		]}`))
	}))
	defer server.Close()

	s, err := NewEmbeddingService(Config{APIKey: "sk-test", BaseURL: server.URL, Dimensions: 2})
	require.NoError(t, err)

	vecs, err := s.EmbedBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
}

func TestEmbedBatch_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1]}]}`))
	}))
	defer server.Close()

	s, _ := NewEmbeddingService(Config{APIKey: "sk", BaseURL: server.URL})
	_, err := s.EmbedBatch(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "got 1 embeddings for 2 texts")
}

func TestEmbedBatch_Empty(t *testing.T) {
	s, _ := NewEmbeddingService(Config{APIKey: "sk", BaseURL: "http://127.0.0.1:0"})
	vecs, err := s.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			http.Error(w, "invalid key", http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	good, _ := NewEmbeddingService(Config{APIKey: "good", BaseURL: server.URL})
	assert.NoError(t, good.Ping(context.Background()))

	bad, _ := NewEmbeddingService(Config{APIKey: "bad", BaseURL: server.URL})
	err := bad.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
