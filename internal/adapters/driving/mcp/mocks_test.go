package mcp

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	results []domain.RetrievalResult
	last    domain.SearchRequest
	err     error
}

func (m *mockSearchService) Search(_ context.Context, req domain.SearchRequest) (*domain.SearchResults, error) {
	m.last = req
	if m.err != nil {
		return nil, m.err
	}
	return &domain.SearchResults{Query: req.Query, Results: m.results}, nil
}

func (m *mockSearchService) SimilarQueries(_ context.Context, _, _ string, _ int) ([]domain.SimilarQuery, error) {
	return nil, m.err
}

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	answer  *domain.Answer
	queries []domain.QueryWithResponses
	userID  string
	err     error
}

func (m *mockQueryService) Submit(
	_ context.Context,
	_, userID, _ string,
	_ domain.QueryOptions,
) (*domain.Answer, error) {
	m.userID = userID
	return m.answer, m.err
}

func (m *mockQueryService) SubmitFeedback(_ context.Context, _, _ string, _ domain.Feedback) error {
	return m.err
}

func (m *mockQueryService) Get(_ context.Context, _, _ string) (*domain.QueryWithResponses, error) {
	return nil, m.err
}

func (m *mockQueryService) List(_ context.Context, _ string, _, _ int) ([]domain.QueryWithResponses, error) {
	return m.queries, m.err
}

func (m *mockQueryService) Delete(_ context.Context, _, _ string) error {
	return m.err
}

// mockProcessor is a mock implementation of driving.DocumentProcessor.
type mockProcessor struct {
	document *domain.Document
	page     *domain.ChunkPage
	err      error
}

func (m *mockProcessor) Process(_ context.Context, _ string, _ bool) (*driving.ProcessOutcome, error) {
	return nil, m.err
}

func (m *mockProcessor) Reprocess(_ context.Context, _ string) (*driving.ProcessOutcome, error) {
	return nil, m.err
}

func (m *mockProcessor) Begin(_ context.Context, _ string, _ bool) (*driving.Round, error) {
	return nil, m.err
}

func (m *mockProcessor) Run(_ context.Context, _ *driving.Round) (*driving.ProcessOutcome, error) {
	return nil, m.err
}

func (m *mockProcessor) ReindexProject(_ context.Context, _ string) (*driving.ReindexReport, error) {
	return nil, m.err
}

func (m *mockProcessor) ProjectDocuments(_ context.Context, _ string) ([]domain.Document, error) {
	return nil, m.err
}

func (m *mockProcessor) Status(_ context.Context, _ string) (*domain.Document, error) {
	return m.document, m.err
}

func (m *mockProcessor) Chunks(_ context.Context, _ string, _, _ int) (*domain.ChunkPage, error) {
	return m.page, m.err
}
