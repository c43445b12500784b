package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure QueryStore implements the interface.
var _ driven.QueryStore = (*QueryStore)(nil)

// QueryStore is an in-memory implementation of driven.QueryStore.
type QueryStore struct {
	mu        sync.RWMutex
	queries   map[string]domain.Query
	responses map[string]domain.Response
}

// NewQueryStore creates a new in-memory query store.
func NewQueryStore() *QueryStore {
	return &QueryStore{
		queries:   make(map[string]domain.Query),
		responses: make(map[string]domain.Response),
	}
}

// SaveQuery stores a new query.
func (s *QueryStore) SaveQuery(_ context.Context, q *domain.Query) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries[q.ID] = *q
	return nil
}

// GetQuery retrieves a query by ID.
func (s *QueryStore) GetQuery(_ context.Context, id string) (*domain.Query, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.queries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &q, nil
}

// ListQueries returns a project's queries, newest first.
func (s *QueryStore) ListQueries(_ context.Context, projectID string, limit, offset int) ([]domain.Query, error) {
	s.mu.RLock()
	result := make([]domain.Query, 0)
	for _, q := range s.queries {
		if q.ProjectID == projectID {
			result = append(result, q)
		}
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if offset >= len(result) {
		return []domain.Query{}, nil
	}
	result = result[offset:]
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// DeleteQuery removes a query and its responses.
func (s *QueryStore) DeleteQuery(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.queries[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.queries, id)
	for rid, r := range s.responses {
		if r.QueryID == id {
			delete(s.responses, rid)
		}
	}
	return nil
}

// SaveResponse stores a new response.
func (s *QueryStore) SaveResponse(_ context.Context, r *domain.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.queries[r.QueryID]; !ok {
		return domain.ErrNotFound
	}
	s.responses[r.ID] = *r
	return nil
}

// GetResponse retrieves a response by ID.
func (s *QueryStore) GetResponse(_ context.Context, id string) (*domain.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.responses[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &r, nil
}

// ListResponses returns the responses recorded for a query, oldest first.
func (s *QueryStore) ListResponses(_ context.Context, queryID string) ([]domain.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Response, 0)
	for _, r := range s.responses {
		if r.QueryID == queryID {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// SetFeedback records a rating on a response.
func (s *QueryStore) SetFeedback(_ context.Context, responseID string, feedback domain.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.responses[responseID]
	if !ok {
		return domain.ErrNotFound
	}
	rating := feedback.Rating
	r.FeedbackRating = &rating
	r.FeedbackComment = feedback.Comment
	s.responses[responseID] = r
	return nil
}
