package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func TestExtractBetween(t *testing.T) {
	const prefix, suffix = uriScheme + "documents/", "/chunks"
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{
			name:     "valid chunks URI",
			uri:      "sercha-rag://documents/doc-123/chunks",
			expected: "doc-123",
		},
		{
			name:     "invalid prefix",
			uri:      "file://documents/doc-123/chunks",
			expected: "",
		},
		{
			name:     "missing chunks suffix",
			uri:      "sercha-rag://documents/doc-123",
			expected: "",
		},
		{
			name:     "nested path",
			uri:      "sercha-rag://documents/a/b/chunks",
			expected: "",
		},
		{
			name:     "empty URI",
			uri:      "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractBetween(tt.uri, prefix, suffix))
		})
	}
}

func readRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func TestServer_handleChunksResource(t *testing.T) {
	ctx := context.Background()

	t.Run("returns chunks as JSON", func(t *testing.T) {
		proc := &mockProcessor{page: &domain.ChunkPage{
			DocumentID: "doc-1",
			Chunks: []domain.Chunk{
				{Index: 0, Content: "first part"},
				{Index: 1, Content: "second part"},
			},
			Total: 2,
		}}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Processor: proc})
		require.NoError(t, err)

		result, err := server.handleChunksResource(ctx, readRequest("sercha-rag://documents/doc-1/chunks"))

		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, "application/json", result.Contents[0].MIMEType)
		assert.Contains(t, result.Contents[0].Text, "second part")
		assert.Contains(t, result.Contents[0].Text, `"total": 2`)
	})

	t.Run("malformed URI is not found", func(t *testing.T) {
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Processor: &mockProcessor{}})
		require.NoError(t, err)

		_, err = server.handleChunksResource(ctx, readRequest("sercha-rag://documents/doc-1"))

		assert.Error(t, err)
	})

	t.Run("processor error is wrapped", func(t *testing.T) {
		proc := &mockProcessor{err: errors.New("index closed")}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Processor: proc})
		require.NoError(t, err)

		_, err = server.handleChunksResource(ctx, readRequest("sercha-rag://documents/doc-1/chunks"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "listing chunks")
	})
}

func TestServer_handleQueriesResource(t *testing.T) {
	ctx := context.Background()

	t.Run("returns queries with answers", func(t *testing.T) {
		q := &mockQueryService{queries: []domain.QueryWithResponses{{
			Query:     domain.Query{ID: "q1", Text: "what is sercha?"},
			Responses: []domain.Response{{ID: "r1", AnswerText: "A document indexer."}},
		}}}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Query: q})
		require.NoError(t, err)

		result, err := server.handleQueriesResource(ctx, readRequest("sercha-rag://projects/p1/queries"))

		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Contains(t, result.Contents[0].Text, "what is sercha?")
		assert.Contains(t, result.Contents[0].Text, "A document indexer.")
	})

	t.Run("without query service", func(t *testing.T) {
		server, err := NewServer(&Ports{Search: &mockSearchService{}})
		require.NoError(t, err)

		_, err = server.handleQueriesResource(ctx, readRequest("sercha-rag://projects/p1/queries"))

		assert.Error(t, err)
	})
}
