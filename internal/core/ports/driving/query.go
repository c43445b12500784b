package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// QueryService answers questions from a project's documents.
type QueryService interface {
	// Submit records the query, retrieves context and generates an answer.
	// Returns domain.ErrNoRelevantContent when retrieval finds nothing.
	Submit(ctx context.Context, projectID, userID, text string, opts domain.QueryOptions) (*domain.Answer, error)

	// SubmitFeedback rates a response of the given query.
	SubmitFeedback(ctx context.Context, queryID, responseID string, feedback domain.Feedback) error

	// Get returns a query with its responses. Only the owner may read it.
	Get(ctx context.Context, userID, queryID string) (*domain.QueryWithResponses, error)

	// List returns a project's queries with their responses, newest first.
	List(ctx context.Context, projectID string, limit, offset int) ([]domain.QueryWithResponses, error)

	// Delete removes a query and its responses. Only the owner may delete it.
	Delete(ctx context.Context, userID, queryID string) error
}
