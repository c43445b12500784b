package tui

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// MockQueryService implements driving.QueryService for testing.
type MockQueryService struct {
	SubmitFunc func(ctx context.Context, projectID, userID, text string, opts domain.QueryOptions) (*domain.Answer, error)
}

func (m *MockQueryService) Submit(
	ctx context.Context, projectID, userID, text string, opts domain.QueryOptions,
) (*domain.Answer, error) {
	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, projectID, userID, text, opts)
	}
	return &domain.Answer{Query: text}, nil
}

func (m *MockQueryService) SubmitFeedback(context.Context, string, string, domain.Feedback) error {
	return nil
}

func (m *MockQueryService) Get(context.Context, string, string) (*domain.QueryWithResponses, error) {
	return nil, domain.ErrNotFound
}

func (m *MockQueryService) List(context.Context, string, int, int) ([]domain.QueryWithResponses, error) {
	return nil, nil
}

func (m *MockQueryService) Delete(context.Context, string, string) error {
	return nil
}

// MockSearchService implements driving.SearchService for testing.
type MockSearchService struct {
	SearchFunc func(ctx context.Context, req domain.SearchRequest) (*domain.SearchResults, error)
}

func (m *MockSearchService) Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResults, error) {
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, req)
	}
	return &domain.SearchResults{Query: req.Query}, nil
}

func (m *MockSearchService) SimilarQueries(context.Context, string, string, int) ([]domain.SimilarQuery, error) {
	return nil, nil
}
