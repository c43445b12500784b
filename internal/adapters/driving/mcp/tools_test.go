package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func TestServer_handleSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("returns search results", func(t *testing.T) {
		mockSearch := &mockSearchService{
			results: []domain.RetrievalResult{
				{
					ChunkID:    "c-1",
					DocumentID: "doc-1",
					ChunkIndex: 3,
					Content:    "This is the content",
					Metadata:   domain.ChunkMetadata{DocumentName: "guide.md"},
					Score:      0.95,
					Source:     domain.RetrievalVector,
				},
			},
		}

		server, err := NewServer(&Ports{Search: mockSearch})
		require.NoError(t, err)

		input := SearchInput{ProjectID: "p1", Query: "test", Mode: "vector", Limit: 10}
		_, output, err := server.handleSearch(ctx, nil, input)

		require.NoError(t, err)
		assert.Equal(t, 1, output.Count)
		require.Len(t, output.Results, 1)
		assert.Equal(t, "doc-1", output.Results[0].DocumentID)
		assert.Equal(t, "guide.md", output.Results[0].DocumentName)
		assert.Equal(t, 3, output.Results[0].ChunkIndex)
		assert.Equal(t, 0.95, output.Results[0].Score)
		assert.Equal(t, "vector", output.Results[0].Signal)
		assert.Equal(t, "This is the content", output.Results[0].Content)

		assert.Equal(t, domain.RetrievalVector, mockSearch.last.Mode)
		assert.Equal(t, "p1", mockSearch.last.ProjectID)
	})

	t.Run("unset limit and mode defer to settings", func(t *testing.T) {
		mockSearch := &mockSearchService{}
		server, err := NewServer(&Ports{Search: mockSearch})
		require.NoError(t, err)

		_, output, err := server.handleSearch(ctx, nil, SearchInput{ProjectID: "p1", Query: "test"})

		require.NoError(t, err)
		assert.Equal(t, 0, output.Count)
		assert.Zero(t, mockSearch.last.Limit)
		assert.Empty(t, mockSearch.last.Mode)
	})

	t.Run("returns error on search failure", func(t *testing.T) {
		mockSearch := &mockSearchService{err: errors.New("search failed")}
		server, err := NewServer(&Ports{Search: mockSearch})
		require.NoError(t, err)

		_, _, err = server.handleSearch(ctx, nil, SearchInput{Query: "test"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "search failed")
	})
}

func TestServer_handleAsk(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the answer", func(t *testing.T) {
		mockQuery := &mockQueryService{answer: &domain.Answer{
			ID:         "q1",
			Answer:     "Thirty days.",
			ResponseID: "r1",
			Sources:    []domain.Source{{ID: "doc-1", Title: "policy.md", Relevance: 0.9}},
		}}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Query: mockQuery, UserID: "claude"})
		require.NoError(t, err)

		_, output, err := server.handleAsk(ctx, nil, AskInput{ProjectID: "p1", Question: "refund window?"})

		require.NoError(t, err)
		assert.True(t, output.Found)
		assert.Equal(t, "Thirty days.", output.Answer)
		assert.Equal(t, "r1", output.ResponseID)
		assert.Len(t, output.Sources, 1)
		assert.Equal(t, "claude", mockQuery.userID)
	})

	t.Run("no relevant content is not an error", func(t *testing.T) {
		mockQuery := &mockQueryService{err: domain.ErrNoRelevantContent}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Query: mockQuery})
		require.NoError(t, err)

		_, output, err := server.handleAsk(ctx, nil, AskInput{ProjectID: "p1", Question: "anything?"})

		require.NoError(t, err)
		assert.False(t, output.Found)
		assert.Contains(t, output.Answer, "No relevant content")
		assert.Equal(t, DefaultUserID, mockQuery.userID)
	})

	t.Run("provider failure is returned", func(t *testing.T) {
		mockQuery := &mockQueryService{err: domain.NewProviderError("openai", "generate", errors.New("503"))}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Query: mockQuery})
		require.NoError(t, err)

		_, _, err = server.handleAsk(ctx, nil, AskInput{ProjectID: "p1", Question: "q"})

		assert.ErrorIs(t, err, domain.ErrProvider)
	})

	t.Run("without query service", func(t *testing.T) {
		server, err := NewServer(&Ports{Search: &mockSearchService{}})
		require.NoError(t, err)

		_, _, err = server.handleAsk(ctx, nil, AskInput{ProjectID: "p1", Question: "q"})

		assert.ErrorIs(t, err, errUnavailable)
	})
}

func TestServer_handleDocumentStatus(t *testing.T) {
	ctx := context.Background()
	processedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("returns status", func(t *testing.T) {
		proc := &mockProcessor{document: &domain.Document{
			ID:          "doc-1",
			Name:        "guide.md",
			Status:      domain.StatusCompleted,
			ProcessedAt: &processedAt,
		}}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Processor: proc})
		require.NoError(t, err)

		_, output, err := server.handleDocumentStatus(ctx, nil, StatusInput{DocumentID: "doc-1"})

		require.NoError(t, err)
		assert.Equal(t, "completed", output.Status)
		assert.Equal(t, "guide.md", output.Name)
		assert.Equal(t, &processedAt, output.ProcessedAt)
	})

	t.Run("not found", func(t *testing.T) {
		proc := &mockProcessor{err: domain.ErrNotFound}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Processor: proc})
		require.NoError(t, err)

		_, _, err = server.handleDocumentStatus(ctx, nil, StatusInput{DocumentID: "missing"})

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("without processor", func(t *testing.T) {
		server, err := NewServer(&Ports{Search: &mockSearchService{}})
		require.NoError(t, err)

		_, _, err = server.handleDocumentStatus(ctx, nil, StatusInput{DocumentID: "doc-1"})

		assert.ErrorIs(t, err, errUnavailable)
	})
}
