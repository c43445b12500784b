package driving

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// SearchService provides retrieval over a project's indexed chunks.
type SearchService interface {
	// Search runs a vector, keyword or hybrid retrieval.
	Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResults, error)

	// SimilarQueries returns prior questions in the project close to text.
	SimilarQueries(ctx context.Context, projectID, text string, limit int) ([]domain.SimilarQuery, error)
}
