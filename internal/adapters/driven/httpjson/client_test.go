package httpjson

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func TestClient_PostJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/echo", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["text"]})
	}))
	defer server.Close()

	c := New(server.URL+"/", time.Second, map[string]string{"Authorization": "Bearer key"})
	assert.Equal(t, server.URL, c.BaseURL())

	var out map[string]string
	require.NoError(t, c.PostJSON(context.Background(), "/v1/echo", map[string]string{"text": "hi"}, &out))
	assert.Equal(t, "hi", out["echo"])
}

func TestClient_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	err := New(server.URL, time.Second, nil).Get(context.Background(), "/models", nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Contains(t, se.Body, "bad key")
}

func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	err := New(server.URL, 20*time.Millisecond, nil).Get(context.Background(), "/slow", nil)
	assert.ErrorIs(t, err, domain.ErrTimeout)
}

func TestClient_DecodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	var out map[string]any
	err := New(server.URL, time.Second, nil).Get(context.Background(), "/", &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}
