package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure QueryService implements the interface.
var _ driving.QueryService = (*QueryService)(nil)

const (
	// snippetLength is the number of characters of chunk content shown per source.
	snippetLength = 200

	// defaultQueryPageSize applies when List is called without a limit.
	defaultQueryPageSize = 20

	// MaxQueryLength bounds the length of a question.
	MaxQueryLength = 4000
)

// QueryConfig holds query defaults.
type QueryConfig struct {
	// Defaults fill unset query options.
	Defaults domain.QueryOptions

	// Provider and Model identify the default answer generator.
	Provider domain.AIProvider
	Model    string
}

// QueryService answers questions by retrieving context and generating an answer.
type QueryService struct {
	store     driven.QueryStore
	search    driving.SearchService
	generator driven.AnswerGenerator
	embedder  driven.EmbeddingService
	queries   driven.QueryIndex
	cfg       QueryConfig
	now       func() time.Time
}

// NewQueryService creates a new query service.
// The generator may be nil, in which case Submit returns domain.ErrLLMUnavailable.
// The embedder and queries parameters are optional and only feed the similar-query index.
func NewQueryService(
	store driven.QueryStore,
	search driving.SearchService,
	generator driven.AnswerGenerator,
	embedder driven.EmbeddingService,
	queries driven.QueryIndex,
	cfg QueryConfig,
) *QueryService {
	cfg.Defaults = mergeOptions(cfg.Defaults, domain.DefaultQueryOptions())
	return &QueryService{
		store:     store,
		search:    search,
		generator: generator,
		embedder:  embedder,
		queries:   queries,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Submit records the query, retrieves context and generates an answer.
// The query record is kept even when retrieval finds nothing or generation fails.
func (s *QueryService) Submit(
	ctx context.Context, projectID, userID, text string, opts domain.QueryOptions,
) (*domain.Answer, error) {
	logger.Section("Query")

	text = strings.TrimSpace(text)
	if err := validateQuery(projectID, userID, text); err != nil {
		return nil, err
	}
	opts = s.resolve(opts)
	if err := validateOptions(opts); err != nil {
		return nil, err
	}

	query := &domain.Query{
		ID:        NewID(),
		UserID:    userID,
		ProjectID: projectID,
		Text:      text,
		Language:  opts.Language,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.SaveQuery(ctx, query); err != nil {
		return nil, fmt.Errorf("save query: %w", err)
	}
	logger.Debug("Query %s saved for project %s", query.ID, projectID)

	// One embedding serves both retrieval and the similar-query index.
	var vector []float32
	if s.embedder != nil && opts.Mode != domain.RetrievalKeyword {
		v, err := s.embedder.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("retrieve context: %w", embeddingFailure("embed query", err))
		}
		vector = v
	}

	results, err := s.search.Search(ctx, domain.SearchRequest{
		ProjectID:      projectID,
		Query:          text,
		Limit:          opts.Limit,
		Threshold:      opts.Threshold,
		Filters:        opts.Filters,
		Mode:           opts.Mode,
		QueryEmbedding: vector,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	// Indexed after retrieval, so a query never matches itself.
	s.indexQuery(ctx, query, vector)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", query.ID, err)
	}
	if results.Total() == 0 {
		logger.Info("Query %s: no relevant content", query.ID)
		return nil, fmt.Errorf("query %s: %w", query.ID, domain.ErrNoRelevantContent)
	}

	if s.generator == nil {
		return nil, domain.ErrLLMUnavailable
	}

	params := domain.GenerateParams{
		Provider:    opts.Provider,
		Model:       opts.Model,
		Temperature: *opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	logger.Debug("Generating answer from %d chunks with %s", results.Total(), params.Provider)
	generated, err := s.generator.Generate(ctx, text, BuildContext(results.Results), params)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	// A cancelled caller gets no answer even if the provider finished.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", query.ID, err)
	}

	model := generated.Model
	if model == "" {
		model = params.Model
	}
	response := &domain.Response{
		ID:              NewID(),
		QueryID:         query.ID,
		AnswerText:      generated.Text,
		ModelIdentifier: model,
		ModelParams: domain.ModelParams{
			Provider:    params.Provider,
			Model:       model,
			Temperature: params.Temperature,
			MaxTokens:   params.MaxTokens,
		},
		TokenCount:   len(generated.Text) / 4,
		SourceChunks: append([]domain.RetrievalResult(nil), results.Results...),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.SaveResponse(ctx, response); err != nil {
		return nil, fmt.Errorf("save response: %w", err)
	}
	logger.Info("Query %s answered with response %s (%d sources)", query.ID, response.ID, results.Total())

	return &domain.Answer{
		ID:         query.ID,
		Query:      text,
		Answer:     response.AnswerText,
		ResponseID: response.ID,
		Sources:    sourcesFrom(results.Results),
		CreatedAt:  response.CreatedAt,
	}, nil
}

// SubmitFeedback rates a response of the given query.
func (s *QueryService) SubmitFeedback(
	ctx context.Context, queryID, responseID string, feedback domain.Feedback,
) error {
	if strings.TrimSpace(responseID) == "" {
		return domain.NewValidationError("responseId", "is required")
	}
	if err := feedback.Validate(); err != nil {
		return err
	}

	response, err := s.store.GetResponse(ctx, responseID)
	if err != nil {
		return fmt.Errorf("get response: %w", err)
	}
	if queryID != "" && response.QueryID != queryID {
		return fmt.Errorf("response %s of query %s: %w", responseID, queryID, domain.ErrNotFound)
	}

	if err := s.store.SetFeedback(ctx, responseID, feedback); err != nil {
		return fmt.Errorf("set feedback: %w", err)
	}
	logger.Info("Feedback %d recorded on response %s", feedback.Rating, responseID)
	return nil
}

// Get returns a query with its responses.
func (s *QueryService) Get(ctx context.Context, userID, queryID string) (*domain.QueryWithResponses, error) {
	query, err := s.owned(ctx, userID, queryID)
	if err != nil {
		return nil, err
	}
	responses, err := s.store.ListResponses(ctx, query.ID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	return &domain.QueryWithResponses{Query: *query, Responses: responses}, nil
}

// List returns a project's queries with their responses, newest first.
func (s *QueryService) List(
	ctx context.Context, projectID string, limit, offset int,
) ([]domain.QueryWithResponses, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, domain.NewValidationError("projectId", "is required")
	}
	if limit <= 0 {
		limit = defaultQueryPageSize
	}
	if offset < 0 {
		return nil, domain.NewValidationError("offset", "must not be negative")
	}

	queries, err := s.store.ListQueries(ctx, projectID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list queries: %w", err)
	}
	out := make([]domain.QueryWithResponses, 0, len(queries))
	for _, q := range queries {
		responses, err := s.store.ListResponses(ctx, q.ID)
		if err != nil {
			return nil, fmt.Errorf("list responses of %s: %w", q.ID, err)
		}
		out = append(out, domain.QueryWithResponses{Query: q, Responses: responses})
	}
	return out, nil
}

// Delete removes a query and its responses.
func (s *QueryService) Delete(ctx context.Context, userID, queryID string) error {
	query, err := s.owned(ctx, userID, queryID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteQuery(ctx, query.ID); err != nil {
		return fmt.Errorf("delete query: %w", err)
	}
	logger.Info("Query %s deleted", query.ID)
	return nil
}

func (s *QueryService) owned(ctx context.Context, userID, queryID string) (*domain.Query, error) {
	if strings.TrimSpace(queryID) == "" {
		return nil, domain.NewValidationError("queryId", "is required")
	}
	query, err := s.store.GetQuery(ctx, queryID)
	if err != nil {
		return nil, fmt.Errorf("get query: %w", err)
	}
	if query.UserID != userID {
		return nil, fmt.Errorf("query %s: %w", queryID, domain.ErrForbidden)
	}
	return query, nil
}

// indexQuery adds the query to the similar-query index. Failures are logged only.
func (s *QueryService) indexQuery(ctx context.Context, query *domain.Query, vector []float32) {
	if s.queries == nil || len(vector) == 0 {
		return
	}
	if err := s.queries.IndexQuery(ctx, query, vector); err != nil {
		logger.Warn("Query %s not added to similar-query index: %v", query.ID, err)
	}
}

// resolve fills unset options from the configured defaults.
func (s *QueryService) resolve(opts domain.QueryOptions) domain.QueryOptions {
	if opts.Mode == "" && opts.UseHybridSearch != nil {
		if *opts.UseHybridSearch {
			opts.Mode = domain.RetrievalHybrid
		} else {
			opts.Mode = domain.RetrievalVector
		}
	}
	opts = mergeOptions(opts, s.cfg.Defaults)
	if opts.Provider == "" {
		opts.Provider = s.cfg.Provider
	}
	if opts.Model == "" && opts.Provider == s.cfg.Provider {
		opts.Model = s.cfg.Model
	}
	return opts
}

// mergeOptions returns opts with unset fields taken from defaults.
func mergeOptions(opts, defaults domain.QueryOptions) domain.QueryOptions {
	if opts.Language == "" {
		opts.Language = defaults.Language
	}
	if opts.Limit == 0 {
		opts.Limit = defaults.Limit
	}
	if opts.Threshold == nil {
		opts.Threshold = defaults.Threshold
	}
	if opts.Mode == "" {
		opts.Mode = defaults.Mode
	}
	if opts.Provider == "" {
		opts.Provider = defaults.Provider
	}
	if opts.Model == "" {
		opts.Model = defaults.Model
	}
	if opts.Temperature == nil {
		opts.Temperature = defaults.Temperature
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = defaults.MaxTokens
	}
	return opts
}

func validateQuery(projectID, userID, text string) error {
	if strings.TrimSpace(projectID) == "" {
		return domain.NewValidationError("projectId", "is required")
	}
	if strings.TrimSpace(userID) == "" {
		return domain.NewValidationError("userId", "is required")
	}
	if text == "" {
		return domain.NewValidationError("query", "is required")
	}
	if len(text) > MaxQueryLength {
		return domain.NewValidationError("query", fmt.Sprintf("must be at most %d characters", MaxQueryLength))
	}
	return nil
}

func validateOptions(opts domain.QueryOptions) error {
	var errs []error
	if opts.Limit < 1 || opts.Limit > MaxSearchLimit {
		errs = append(errs, domain.NewValidationError("limit", fmt.Sprintf("must be between 1 and %d", MaxSearchLimit)))
	}
	if opts.Threshold != nil && (*opts.Threshold < 0 || *opts.Threshold > 1) {
		errs = append(errs, domain.NewValidationError("threshold", "must be between 0 and 1"))
	}
	if !opts.Mode.IsValid() {
		errs = append(errs, domain.NewValidationError("mode", fmt.Sprintf("unknown retrieval mode %q", opts.Mode)))
	}
	if opts.Temperature != nil && (*opts.Temperature < 0 || *opts.Temperature > 2) {
		errs = append(errs, domain.NewValidationError("temperature", "must be between 0 and 2"))
	}
	if opts.MaxTokens < 0 {
		errs = append(errs, domain.NewValidationError("maxTokens", "must not be negative"))
	}
	if opts.Provider != "" && !opts.Provider.IsValid() {
		errs = append(errs, domain.NewValidationError("provider", fmt.Sprintf("unknown provider %q", opts.Provider)))
	}
	return errors.Join(errs...)
}

// BuildContext concatenates retrieved chunks in rank order, each tagged with
// its document name and chunk index.
func BuildContext(results []domain.RetrievalResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, fmt.Sprintf("[Source: %s, Chunk: %d]\n%s",
			r.Metadata.DocumentName, r.ChunkIndex, r.Content))
	}
	return strings.Join(parts, "\n\n")
}

func sourcesFrom(results []domain.RetrievalResult) []domain.Source {
	sources := make([]domain.Source, 0, len(results))
	for _, r := range results {
		sources = append(sources, domain.Source{
			ID:        r.DocumentID,
			Title:     r.Metadata.DocumentName,
			Snippet:   snippet(r.Content),
			Relevance: r.Score,
		})
	}
	return sources
}

func snippet(content string) string {
	runes := []rune(content)
	if len(runes) <= snippetLength {
		return content
	}
	return string(runes[:snippetLength]) + "..."
}
