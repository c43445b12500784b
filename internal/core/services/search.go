package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// MaxSearchLimit bounds the number of results one search call may return.
const MaxSearchLimit = 100

// SearchConfig holds search defaults.
type SearchConfig struct {
	// DefaultLimit applies when a request leaves Limit unset.
	DefaultLimit int

	// DefaultThreshold applies when a request leaves Threshold unset.
	DefaultThreshold float64

	// KeywordBoost weights the normalised lexical signal during fusion.
	KeywordBoost float64

	// DefaultMode applies when a request leaves Mode unset.
	DefaultMode domain.RetrievalMode
}

// SearchService retrieves ranked chunks by vector, keyword or hybrid retrieval.
type SearchService struct {
	index            driven.IndexStore
	embeddingService driven.EmbeddingService
	queryIndex       driven.QueryIndex
	cfg              SearchConfig
}

// NewSearchService creates a new search service.
// The embeddingService and queryIndex parameters are optional (can be nil).
func NewSearchService(
	index driven.IndexStore,
	embeddingService driven.EmbeddingService,
	queryIndex driven.QueryIndex,
	cfg SearchConfig,
) *SearchService {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 5
	}
	if cfg.KeywordBoost < 0 {
		cfg.KeywordBoost = 0
	}
	if !cfg.DefaultMode.IsValid() {
		cfg.DefaultMode = domain.RetrievalHybrid
	}
	return &SearchService{
		index:            index,
		embeddingService: embeddingService,
		queryIndex:       queryIndex,
		cfg:              cfg,
	}
}

// Search runs a retrieval call and returns at most Limit results.
// Vector and hybrid results all score at or above the threshold; keyword
// results are returned in raw lexical order.
func (s *SearchService) Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResults, error) {
	logger.Section("Search Execution")

	req, threshold, err := s.resolve(req)
	if err != nil {
		return nil, err
	}
	logger.Debug("Query: %q, project: %s, mode: %s, limit: %d, threshold: %.2f",
		req.Query, req.ProjectID, req.Mode, req.Limit, threshold)

	k := req.Limit * 2

	var results []domain.RetrievalResult
	switch req.Mode {
	case domain.RetrievalVector:
		results, err = s.vectorSearch(ctx, req, k)
		if err == nil {
			results = applyThreshold(results, threshold)
		}
	case domain.RetrievalKeyword:
		results, err = s.keywordSearch(ctx, req, k)
	default:
		results, err = s.hybridSearch(ctx, req, k)
		if err == nil {
			results = applyThreshold(results, threshold)
		}
	}
	if err != nil {
		logger.Warn("Search failed: %v", err)
		return nil, fmt.Errorf("search: %w", err)
	}

	if len(results) > req.Limit {
		results = results[:req.Limit]
	}
	logger.Info("Search %q (%s): %d results", req.Query, req.Mode.Description(), len(results))

	return &domain.SearchResults{Query: req.Query, Results: results}, nil
}

// SimilarQueries returns past queries of the project whose embedding is close to text.
func (s *SearchService) SimilarQueries(
	ctx context.Context, projectID, text string, limit int,
) ([]domain.SimilarQuery, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, domain.NewValidationError("projectId", "is required")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.NewValidationError("query", "is required")
	}
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if s.queryIndex == nil {
		logger.Debug("Query index unavailable, no similar queries")
		return []domain.SimilarQuery{}, nil
	}
	if s.embeddingService == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	vector, err := s.embeddingService.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", embeddingFailure("embed query", err))
	}
	similar, err := s.queryIndex.SimilarQueries(ctx, projectID, vector, limit)
	if err != nil {
		return nil, fmt.Errorf("similar queries: %w", err)
	}
	if similar == nil {
		similar = []domain.SimilarQuery{}
	}
	return similar, nil
}

// resolve validates the request and fills in defaults.
func (s *SearchService) resolve(req domain.SearchRequest) (domain.SearchRequest, float64, error) {
	req.Query = strings.TrimSpace(req.Query)
	if strings.TrimSpace(req.ProjectID) == "" {
		return req, 0, domain.NewValidationError("projectId", "is required")
	}
	if req.Query == "" {
		return req, 0, domain.NewValidationError("query", "is required")
	}

	if req.Limit == 0 {
		req.Limit = s.cfg.DefaultLimit
	}
	if req.Limit < 0 || req.Limit > MaxSearchLimit {
		return req, 0, domain.NewValidationError("limit", fmt.Sprintf("must be between 1 and %d", MaxSearchLimit))
	}

	threshold := s.cfg.DefaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	if threshold < 0 || threshold > 1 {
		return req, 0, domain.NewValidationError("threshold", "must be between 0 and 1")
	}

	if req.Mode == "" {
		req.Mode = s.cfg.DefaultMode
	}
	if !req.Mode.IsValid() {
		return req, 0, domain.NewValidationError("mode", fmt.Sprintf("unknown retrieval mode %q", req.Mode))
	}
	return req, threshold, nil
}

// vectorSearch embeds the query and runs k-NN over chunk embeddings.
func (s *SearchService) vectorSearch(
	ctx context.Context, req domain.SearchRequest, k int,
) ([]domain.RetrievalResult, error) {
	if s.embeddingService == nil {
		logger.Warn("Vector search unavailable: embedding service is nil")
		return nil, domain.ErrEmbeddingUnavailable
	}

	embedding := req.QueryEmbedding
	if len(embedding) == 0 {
		var err error
		embedding, err = s.embeddingService.Embed(ctx, req.Query)
		if err != nil {
			return nil, fmt.Errorf("generate query embedding: %w", embeddingFailure("embed query", err))
		}
	}
	logger.Debug("Query embedding: %d dimensions", len(embedding))

	hits, err := s.index.VectorSearch(ctx, req.ProjectID, embedding, k, req.Filters)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	logger.Debug("Vector search: %d hits", len(hits))
	return tag(hits, domain.RetrievalVector), nil
}

// keywordSearch runs conjunctive lexical matching.
func (s *SearchService) keywordSearch(
	ctx context.Context, req domain.SearchRequest, k int,
) ([]domain.RetrievalResult, error) {
	hits, err := s.index.KeywordSearch(ctx, req.ProjectID, req.Query, k, req.Filters)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	logger.Debug("Keyword search: %d hits", len(hits))
	return tag(hits, domain.RetrievalKeyword), nil
}

// hybridSearch runs vector and keyword retrieval concurrently and fuses the
// results. Without an embedding service the keyword results are used alone,
// normalised to [0,1]. A failing embedding provider fails the search so callers
// can tell it from an empty result; a failing keyword index falls back to the
// vector results.
func (s *SearchService) hybridSearch(
	ctx context.Context, req domain.SearchRequest, k int,
) ([]domain.RetrievalResult, error) {
	var vectorResults, keywordResults []domain.RetrievalResult
	var vectorErr, keywordErr error

	var g errgroup.Group
	g.Go(func() error {
		vectorResults, vectorErr = s.vectorSearch(ctx, req, k)
		return nil
	})
	g.Go(func() error {
		keywordResults, keywordErr = s.keywordSearch(ctx, req, k)
		return nil
	})
	_ = g.Wait()

	switch {
	case vectorErr != nil && keywordErr != nil:
		logger.Warn("Hybrid search: both vector and keyword searches failed")
		return nil, errors.Join(vectorErr, keywordErr)
	case errors.Is(vectorErr, domain.ErrEmbeddingUnavailable):
		logger.Debug("Hybrid search: no embedding service, using keyword results only")
		return Fuse(nil, keywordResults, 1), nil
	case vectorErr != nil:
		return nil, vectorErr
	case keywordErr != nil:
		logger.Warn("Hybrid search: keyword search failed, using vector results only: %v", keywordErr)
		return vectorResults, nil
	}

	merged := Fuse(vectorResults, keywordResults, s.cfg.KeywordBoost)
	logger.Debug("Hybrid search: fused %d vector + %d keyword results into %d",
		len(vectorResults), len(keywordResults), len(merged))
	return merged, nil
}

// embeddingFailure classifies an embedding error as a provider failure unless
// it already is one or the caller went away.
func embeddingFailure(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrProvider), errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return domain.NewProviderError("embedding", op, fmt.Errorf("%w: %w", domain.ErrTimeout, err))
	default:
		return domain.NewProviderError("embedding", op, err)
	}
}

// Fuse merges vector and keyword results into one ranking.
//
// Keyword scores are normalised against the best keyword score. A chunk found by
// both searches scores its vector similarity plus boost times its normalised
// keyword score; a chunk found by one search keeps that search's score, with
// keyword-only chunks scoring boost times their normalised keyword score. Equal
// scores keep retrieval order, vector results first.
func Fuse(vector, keyword []domain.RetrievalResult, boost float64) []domain.RetrievalResult {
	maxKeyword := 0.0
	for _, r := range keyword {
		if r.Score > maxKeyword {
			maxKeyword = r.Score
		}
	}
	normalised := func(score float64) float64 {
		if maxKeyword <= 0 {
			return 0
		}
		return score / maxKeyword
	}

	keywordByID := make(map[string]domain.RetrievalResult, len(keyword))
	for _, r := range keyword {
		if _, ok := keywordByID[r.ChunkID]; !ok {
			keywordByID[r.ChunkID] = r
		}
	}

	merged := make([]domain.RetrievalResult, 0, len(vector)+len(keyword))
	seen := make(map[string]bool, len(vector)+len(keyword))
	for _, r := range vector {
		if seen[r.ChunkID] {
			continue
		}
		seen[r.ChunkID] = true
		if kw, ok := keywordByID[r.ChunkID]; ok {
			r.Score += boost * normalised(kw.Score)
			r.Source = domain.RetrievalHybrid
		}
		merged = append(merged, r)
	}
	for _, r := range keyword {
		if seen[r.ChunkID] {
			continue
		}
		seen[r.ChunkID] = true
		r.Score = boost * normalised(r.Score)
		merged = append(merged, r)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	return merged
}

func applyThreshold(results []domain.RetrievalResult, threshold float64) []domain.RetrievalResult {
	kept := results[:0]
	for _, r := range results {
		if r.Score >= threshold {
			kept = append(kept, r)
		}
	}
	return kept
}

func tag(results []domain.RetrievalResult, source domain.RetrievalMode) []domain.RetrievalResult {
	if results == nil {
		return []domain.RetrievalResult{}
	}
	for i := range results {
		results[i].Source = source
	}
	return results
}
