package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/core/services"
)

// stubProcessor implements driving.DocumentProcessor for testing.
type stubProcessor struct {
	processed   []string
	reprocessed []string
	force       bool

	processFn func(id string) (*driving.ProcessOutcome, error)
	report    *driving.ReindexReport
	docs      map[string]*domain.Document
	page      *domain.ChunkPage
	err       error
}

func (p *stubProcessor) Process(_ context.Context, id string, force bool) (*driving.ProcessOutcome, error) {
	p.processed = append(p.processed, id)
	p.force = force
	if p.processFn != nil {
		return p.processFn(id)
	}
	if p.err != nil {
		return nil, p.err
	}
	return &driving.ProcessOutcome{DocumentID: id, Status: domain.StatusCompleted, ChunkCount: 3}, nil
}

func (p *stubProcessor) Reprocess(_ context.Context, id string) (*driving.ProcessOutcome, error) {
	p.reprocessed = append(p.reprocessed, id)
	if p.err != nil {
		return nil, p.err
	}
	return &driving.ProcessOutcome{DocumentID: id, Status: domain.StatusCompleted, ChunkCount: 2}, nil
}

func (p *stubProcessor) Begin(_ context.Context, id string, force bool) (*driving.Round, error) {
	p.force = force
	if p.err != nil {
		return nil, p.err
	}
	return &driving.Round{Document: &domain.Document{ID: id, Status: domain.StatusProcessing}}, nil
}

func (p *stubProcessor) Run(_ context.Context, round *driving.Round) (*driving.ProcessOutcome, error) {
	return p.Process(context.Background(), round.Document.ID, p.force)
}

func (p *stubProcessor) ReindexProject(_ context.Context, projectID string) (*driving.ReindexReport, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.report != nil {
		return p.report, nil
	}
	return &driving.ReindexReport{ProjectID: projectID}, nil
}

func (p *stubProcessor) ProjectDocuments(context.Context, string) ([]domain.Document, error) {
	return nil, p.err
}

func (p *stubProcessor) Status(_ context.Context, id string) (*domain.Document, error) {
	if doc, ok := p.docs[id]; ok {
		return doc, nil
	}
	return nil, domain.ErrNotFound
}

func (p *stubProcessor) Chunks(_ context.Context, id string, limit, offset int) (*domain.ChunkPage, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.page != nil {
		return p.page, nil
	}
	return &domain.ChunkPage{DocumentID: id, Limit: limit, Offset: offset}, nil
}

// stubSearch implements driving.SearchService for testing.
type stubSearch struct {
	req     domain.SearchRequest
	results []domain.RetrievalResult
	similar []domain.SimilarQuery
	err     error
}

func (s *stubSearch) Search(_ context.Context, req domain.SearchRequest) (*domain.SearchResults, error) {
	s.req = req
	if s.err != nil {
		return nil, s.err
	}
	return &domain.SearchResults{Query: req.Query, Results: s.results}, nil
}

func (s *stubSearch) SimilarQueries(_ context.Context, projectID, text string, limit int) ([]domain.SimilarQuery, error) {
	s.req = domain.SearchRequest{ProjectID: projectID, Query: text, Limit: limit}
	return s.similar, s.err
}

// stubQuery implements driving.QueryService for testing.
type stubQuery struct {
	userID   string
	text     string
	opts     domain.QueryOptions
	answer   *domain.Answer
	feedback domain.Feedback
	queries  []domain.QueryWithResponses
	deleted  string
	err      error
}

func (q *stubQuery) Submit(
	_ context.Context, _, userID, text string, opts domain.QueryOptions,
) (*domain.Answer, error) {
	q.userID, q.text, q.opts = userID, text, opts
	if q.err != nil {
		return nil, q.err
	}
	return q.answer, nil
}

func (q *stubQuery) SubmitFeedback(_ context.Context, _, _ string, fb domain.Feedback) error {
	q.feedback = fb
	return q.err
}

func (q *stubQuery) Get(_ context.Context, userID, queryID string) (*domain.QueryWithResponses, error) {
	q.userID = userID
	if q.err != nil {
		return nil, q.err
	}
	for i := range q.queries {
		if q.queries[i].Query.ID == queryID {
			return &q.queries[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (q *stubQuery) List(context.Context, string, int, int) ([]domain.QueryWithResponses, error) {
	return q.queries, q.err
}

func (q *stubQuery) Delete(_ context.Context, userID, queryID string) error {
	q.userID, q.deleted = userID, queryID
	return q.err
}

// testServices holds the stubs installed by setupTestServices.
type testServices struct {
	processor *stubProcessor
	search    *stubSearch
	query     *stubQuery
	docs      *memory.DocumentStore
	index     *memory.IndexStore
}

// setupTestServices installs stub services and returns a cleanup func.
func setupTestServices() (*testServices, func()) {
	ts := &testServices{
		processor: &stubProcessor{docs: map[string]*domain.Document{}},
		search:    &stubSearch{},
		query:     &stubQuery{},
		docs:      memory.NewDocumentStore(),
		index:     memory.NewIndexStore(0),
	}

	old := svc
	svc = &Services{
		Processor: ts.processor,
		Search:    ts.search,
		Query:     ts.query,
		Settings:  services.NewSettingsService(memory.NewConfigStore(), nil),
		Documents: ts.docs,
		Index:     ts.index,
	}
	return ts, func() { svc = old }
}

// resetFlags restores every flag to its default so tests do not leak state.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "sercha-rag", rootCmd.Use)
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	names := make([]string, 0, len(rootCmd.Commands()))
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}

	for _, want := range []string{"document", "project", "search", "query", "settings", "serve", "watch", "mcp", "tui", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCmd_ServicesNotConfigured(t *testing.T) {
	old := svc
	svc = nil
	defer func() { svc = old }()

	_, err := execute(t, "document", "status", "doc-1")

	assert.ErrorIs(t, err, errNotConfigured)
}

func TestRootCmd_BootstrapRunsOnceAndCloses(t *testing.T) {
	oldSvc, oldBoot := svc, bootstrap
	svc = nil
	defer func() { svc, bootstrap = oldSvc, oldBoot }()

	ts := &testServices{processor: &stubProcessor{docs: map[string]*domain.Document{
		"doc-1": {ID: "doc-1", Name: "a.md", Status: domain.StatusPending},
	}}}
	var calls, closed int
	var gotOpts BootstrapOptions
	SetBootstrap(func(_ context.Context, opts BootstrapOptions) (*Services, func() error, error) {
		calls++
		gotOpts = opts
		return &Services{Processor: ts.processor}, func() error { closed++; return nil }, nil
	})

	out, err := execute(t, "--ephemeral", "--config-dir", "/tmp/cfg", "document", "status", "doc-1")

	require.NoError(t, err)
	assert.Contains(t, out, "a.md")
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, closed)
	assert.Equal(t, BootstrapOptions{ConfigDir: "/tmp/cfg", Ephemeral: true}, gotOpts)
	assert.Nil(t, svc)
}

func TestRootCmd_VersionSkipsBootstrap(t *testing.T) {
	oldSvc, oldBoot := svc, bootstrap
	svc = nil
	defer func() { svc, bootstrap = oldSvc, oldBoot }()

	SetBootstrap(func(context.Context, BootstrapOptions) (*Services, func() error, error) {
		t.Fatal("bootstrap must not run for version")
		return nil, nil, nil
	})

	_, err := execute(t, "version")

	assert.NoError(t, err)
}

func TestRootCmd_StyledPlainWhenNotTerminal(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetOut(new(bytes.Buffer))

	assert.Equal(t, "hello", styled(cmd, titleStyle, "hello"))
}
