package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// IndexStore persists embedded chunks and serves vector and keyword search.
// Implementations must be safe for concurrent use; callers never hold
// an exclusive lock on the index.
type IndexStore interface {
	// BulkUpsert writes chunks addressed by chunk ID. Writing an existing ID
	// overwrites it in place. When any entry is rejected the returned error is a
	// *domain.PartialIndexFailureError listing the failed IDs.
	BulkUpsert(ctx context.Context, chunks []domain.Chunk) (int, error)

	// DeleteByDocument removes every chunk of a document and returns how many were removed.
	DeleteByDocument(ctx context.Context, documentID string) (int, error)

	// VectorSearch returns up to k chunks of the project ordered by descending
	// cosine similarity to vector.
	VectorSearch(ctx context.Context, projectID string, vector []float32, k int, filters domain.SearchFilters) ([]domain.RetrievalResult, error)

	// KeywordSearch returns up to k chunks of the project containing every query
	// term, ordered by descending lexical relevance.
	KeywordSearch(ctx context.Context, projectID, query string, k int, filters domain.SearchFilters) ([]domain.RetrievalResult, error)

	// ListChunks returns one page of a document's chunks ordered by index
	// together with the document's total chunk count.
	ListChunks(ctx context.Context, documentID string, limit, offset int) ([]domain.Chunk, int, error)

	// Close releases resources.
	Close() error
}

// QueryIndex stores query embeddings for similar-question lookup.
type QueryIndex interface {
	// IndexQuery stores the embedding of a submitted query.
	IndexQuery(ctx context.Context, query *domain.Query, vector []float32) error

	// SimilarQueries returns prior queries of the project nearest to vector.
	SimilarQueries(ctx context.Context, projectID string, vector []float32, limit int) ([]domain.SimilarQuery, error)
}
