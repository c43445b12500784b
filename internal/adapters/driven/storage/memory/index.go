package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure IndexStore implements the interfaces.
var (
	_ driven.IndexStore = (*IndexStore)(nil)
	_ driven.QueryIndex = (*IndexStore)(nil)
)

type queryVector struct {
	query  domain.Query
	vector []float32
}

// IndexStore is an in-memory implementation of driven.IndexStore and
// driven.QueryIndex using a brute-force cosine scan and term matching.
type IndexStore struct {
	mu         sync.RWMutex
	dimensions int
	chunks     map[string]domain.Chunk
	queries    []queryVector
}

// NewIndexStore creates a new in-memory index.
// When dimensions is positive, chunks with embeddings of another size are rejected.
func NewIndexStore(dimensions int) *IndexStore {
	return &IndexStore{
		dimensions: dimensions,
		chunks:     make(map[string]domain.Chunk),
	}
}

// BulkUpsert writes chunks addressed by ID.
func (s *IndexStore) BulkUpsert(ctx context.Context, chunks []domain.Chunk) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var failed []domain.BulkItemError
	written := 0
	for _, c := range chunks {
		if reason := s.reject(c); reason != "" {
			failed = append(failed, domain.BulkItemError{ChunkID: c.ID, Reason: reason})
			continue
		}
		s.chunks[c.ID] = c
		written++
	}
	if len(failed) > 0 {
		return written, &domain.PartialIndexFailureError{Indexed: written, Failed: failed}
	}
	return written, nil
}

func (s *IndexStore) reject(c domain.Chunk) string {
	switch {
	case c.ID == "" || c.DocumentID == "":
		return "missing id"
	case c.Content == "":
		return "empty content"
	case s.dimensions > 0 && len(c.Embedding) > 0 && len(c.Embedding) != s.dimensions:
		return fmt.Sprintf("embedding has %d dimensions, want %d", len(c.Embedding), s.dimensions)
	}
	return ""
}

// DeleteByDocument removes every chunk of a document.
func (s *IndexStore) DeleteByDocument(_ context.Context, documentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, c := range s.chunks {
		if c.DocumentID == documentID {
			delete(s.chunks, id)
			removed++
		}
	}
	return removed, nil
}

// VectorSearch returns up to k chunks ordered by descending cosine similarity.
func (s *IndexStore) VectorSearch(
	ctx context.Context, projectID string, vector []float32, k int, filters domain.SearchFilters,
) ([]domain.RetrievalResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]domain.RetrievalResult, 0)
	for _, c := range s.candidates(projectID, filters) {
		if len(c.Embedding) != len(vector) {
			continue
		}
		score, err := storage.CosineSimilarity(vector, c.Embedding)
		if err != nil {
			return nil, err
		}
		results = append(results, result(c, score))
	}
	return rank(results, k), nil
}

// KeywordSearch returns up to k chunks containing every query term.
// The score is the number of term occurrences in the chunk.
func (s *IndexStore) KeywordSearch(
	ctx context.Context, projectID, query string, k int, filters domain.SearchFilters,
) ([]domain.RetrievalResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	terms := storage.Terms(query)
	results := make([]domain.RetrievalResult, 0)
	if len(terms) == 0 {
		return results, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.candidates(projectID, filters) {
		counts := make(map[string]int, len(terms))
		for _, t := range storage.Terms(c.Content) {
			counts[t]++
		}
		occurrences := 0
		for _, t := range terms {
			if counts[t] == 0 {
				occurrences = 0
				break
			}
			occurrences += counts[t]
		}
		if occurrences > 0 {
			results = append(results, result(c, float64(occurrences)))
		}
	}
	return rank(results, k), nil
}

// ListChunks returns one page of a document's chunks ordered by index.
func (s *IndexStore) ListChunks(_ context.Context, documentID string, limit, offset int) ([]domain.Chunk, int, error) {
	s.mu.RLock()
	var chunks []domain.Chunk
	for _, c := range s.chunks {
		if c.DocumentID == documentID {
			chunks = append(chunks, c)
		}
	}
	s.mu.RUnlock()

	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })
	total := len(chunks)
	if offset >= total {
		return []domain.Chunk{}, total, nil
	}
	end := min(offset+limit, total)
	return chunks[offset:end], total, nil
}

// IndexQuery stores the embedding of a submitted query.
func (s *IndexStore) IndexQuery(_ context.Context, query *domain.Query, vector []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, queryVector{query: *query, vector: vector})
	return nil
}

// SimilarQueries returns prior queries of the project nearest to vector.
func (s *IndexStore) SimilarQueries(
	_ context.Context, projectID string, vector []float32, limit int,
) ([]domain.SimilarQuery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	similar := make([]domain.SimilarQuery, 0)
	for _, q := range s.queries {
		if q.query.ProjectID != projectID || len(q.vector) != len(vector) {
			continue
		}
		score, err := storage.CosineSimilarity(vector, q.vector)
		if err != nil {
			return nil, err
		}
		similar = append(similar, domain.SimilarQuery{QueryID: q.query.ID, Text: q.query.Text, Score: score})
	}
	sort.SliceStable(similar, func(i, j int) bool { return similar[i].Score > similar[j].Score })
	if len(similar) > limit {
		similar = similar[:limit]
	}
	return similar, nil
}

// Count returns the number of indexed chunks.
func (s *IndexStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Close is a no-op.
func (s *IndexStore) Close() error {
	return nil
}

// candidates returns the project's chunks in ID order so equal scores rank deterministically.
func (s *IndexStore) candidates(projectID string, filters domain.SearchFilters) []domain.Chunk {
	var out []domain.Chunk
	for _, c := range s.chunks {
		if c.ProjectID != projectID {
			continue
		}
		if len(filters.DocumentIDs) > 0 && !slices.Contains(filters.DocumentIDs, c.DocumentID) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func result(c domain.Chunk, score float64) domain.RetrievalResult {
	return domain.RetrievalResult{
		ChunkID:    c.ID,
		DocumentID: c.DocumentID,
		ChunkIndex: c.Index,
		Content:    c.Content,
		Metadata:   c.Metadata,
		Score:      score,
	}
}

func rank(results []domain.RetrievalResult, k int) []domain.RetrievalResult {
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results
}
