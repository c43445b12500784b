package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// QueryStore persists queries and their responses.
type QueryStore interface {
	// SaveQuery stores a new query.
	SaveQuery(ctx context.Context, q *domain.Query) error

	// GetQuery retrieves a query by ID.
	GetQuery(ctx context.Context, id string) (*domain.Query, error)

	// ListQueries returns a project's queries, newest first.
	ListQueries(ctx context.Context, projectID string, limit, offset int) ([]domain.Query, error)

	// DeleteQuery removes a query and its responses.
	DeleteQuery(ctx context.Context, id string) error

	// SaveResponse stores a new response.
	SaveResponse(ctx context.Context, r *domain.Response) error

	// GetResponse retrieves a response by ID.
	GetResponse(ctx context.Context, id string) (*domain.Response, error)

	// ListResponses returns the responses recorded for a query.
	ListResponses(ctx context.Context, queryID string) ([]domain.Response, error)

	// SetFeedback records a rating on a response.
	SetFeedback(ctx context.Context, responseID string, feedback domain.Feedback) error
}
