package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/normalisers"
	"github.com/custodia-labs/sercha-rag/internal/normalisers/plaintext"
	"github.com/custodia-labs/sercha-rag/internal/postprocessors/chunker"
)

// prose returns n bytes of text with regular sentence boundaries.
func prose(n int) string {
	const s = "The quick brown fox jumps over the lazy dog. "
	return strings.Repeat(s, n/len(s)+1)[:n]
}

func TestDocumentProcessor_Process_Completes(t *testing.T) {
	p := newPipeline(ProcessorConfig{})
	p.addDocument("alpha", "p1", "Alpha", prose(2500))

	before := time.Now()
	outcome, err := p.processor.Process(context.Background(), "alpha", false)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, outcome.Status)
	assert.Equal(t, 3, outcome.ChunkCount)
	assert.False(t, outcome.Skipped)

	doc, err := p.docs.GetDocument(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, doc.Status)
	assert.Empty(t, doc.ErrorMessage)
	require.NotNil(t, doc.ProcessedAt)
	assert.False(t, doc.ProcessedAt.Before(before))

	chunks, total, err := p.index.ListChunks(context.Background(), "alpha", 10, 0)
	require.NoError(t, err)
	require.Equal(t, 3, total)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, ChunkID("alpha", i), c.ID)
		assert.Equal(t, "p1", c.ProjectID)
		assert.Equal(t, "Alpha", c.Metadata.DocumentName)
		assert.Equal(t, "text/plain", c.Metadata.SourceMIMEType)
		assert.Len(t, c.Embedding, testDims)
		assert.Less(t, c.StartOffset, c.EndOffset)
		assert.NotEmpty(t, c.Content)
	}
}

func TestDocumentProcessor_Process_SkipsCompleted(t *testing.T) {
	p := newPipeline(ProcessorConfig{})
	p.addDocument("alpha", "p1", "Alpha", prose(1500))

	_, err := p.processor.Process(context.Background(), "alpha", false)
	require.NoError(t, err)
	calls := p.embedder.calls.Load()

	outcome, err := p.processor.Process(context.Background(), "alpha", false)
	require.NoError(t, err)
	assert.True(t, outcome.Skipped)
	assert.Equal(t, calls, p.embedder.calls.Load())

	forced, err := p.processor.Process(context.Background(), "alpha", true)
	require.NoError(t, err)
	assert.False(t, forced.Skipped)
	assert.Greater(t, p.embedder.calls.Load(), calls)
}

func TestDocumentProcessor_Reprocess_Idempotent(t *testing.T) {
	p := newPipeline(ProcessorConfig{})
	p.addDocument("alpha", "p1", "Alpha", prose(2500))
	ctx := context.Background()

	_, err := p.processor.Process(ctx, "alpha", false)
	require.NoError(t, err)
	first, _, _ := p.index.ListChunks(ctx, "alpha", 10, 0)

	outcome, err := p.processor.Reprocess(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, 3, outcome.ChunkCount)

	second, total, _ := p.index.ListChunks(ctx, "alpha", 10, 0)
	assert.Equal(t, 3, total)
	assert.Equal(t, 3, p.index.Count())
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Content, second[i].Content)
	}
}

func TestDocumentProcessor_Reprocess_RemovesStaleChunks(t *testing.T) {
	p := newPipeline(ProcessorConfig{})
	p.addDocument("alpha", "p1", "Alpha", prose(2500))
	ctx := context.Background()

	_, err := p.processor.Process(ctx, "alpha", false)
	require.NoError(t, err)
	require.Equal(t, 3, p.index.Count())

	p.blobs.put("blob://alpha", "A much shorter second version.")
	outcome, err := p.processor.Reprocess(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.ChunkCount)

	chunks, total, _ := p.index.ListChunks(ctx, "alpha", 10, 0)
	assert.Equal(t, 1, total)
	assert.Equal(t, "A much shorter second version.", chunks[0].Content)
}

func TestDocumentProcessor_PartialIndexFailure(t *testing.T) {
	p := newPipeline(ProcessorConfig{})
	p.addDocument("beta", "p1", "Beta", prose(4500))
	p.embedder.wrongDimAt = 2
	ctx := context.Background()

	_, err := p.processor.Process(ctx, "beta", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPartialIndexFailure)

	var partial *domain.PartialIndexFailureError
	require.True(t, errors.As(err, &partial))
	assert.Equal(t, []string{ChunkID("beta", 2)}, partial.FailedIDs())
	assert.Equal(t, 4, partial.Indexed)

	doc, _ := p.docs.GetDocument(ctx, "beta")
	assert.Equal(t, domain.StatusFailed, doc.Status)
	assert.Contains(t, doc.ErrorMessage, "partial index failure")

	// Status and index agree: nothing of the failed round is searchable.
	assert.Zero(t, p.index.Count())
	results, err := p.index.KeywordSearch(ctx, "p1", "quick fox", 10, domain.SearchFilters{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDocumentProcessor_Failures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(p *pipeline)
		message string
	}{
		{
			name:    "fetch fails",
			setup:   func(p *pipeline) { p.blobs.err = errors.New("bucket unreachable") },
			message: "fetch: bucket unreachable",
		},
		{
			name:    "embedding fails",
			setup:   func(p *pipeline) { p.embedder.err = domain.NewProviderError("openai", "embed", errors.New("401")) },
			message: "embed: openai embed: 401",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline(ProcessorConfig{})
			p.addDocument("gamma", "p1", "Gamma", prose(1200))
			tt.setup(p)

			_, err := p.processor.Process(context.Background(), "gamma", false)
			require.Error(t, err)

			doc, _ := p.docs.GetDocument(context.Background(), "gamma")
			assert.Equal(t, domain.StatusFailed, doc.Status)
			assert.Equal(t, tt.message, doc.ErrorMessage)
			assert.Zero(t, p.index.Count())
		})
	}
}

func TestDocumentProcessor_FailedThenReprocess(t *testing.T) {
	p := newPipeline(ProcessorConfig{})
	p.addDocument("gamma", "p1", "Gamma", prose(1200))
	p.embedder.err = errors.New("unavailable")
	ctx := context.Background()

	_, err := p.processor.Process(ctx, "gamma", false)
	require.Error(t, err)

	p.embedder.err = nil
	outcome, err := p.processor.Reprocess(ctx, "gamma")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, outcome.Status)

	doc, _ := p.docs.GetDocument(ctx, "gamma")
	assert.Equal(t, domain.StatusCompleted, doc.Status)
	assert.Empty(t, doc.ErrorMessage)
}

func TestDocumentProcessor_Timeout(t *testing.T) {
	p := newPipeline(ProcessorConfig{Timeout: 20 * time.Millisecond})
	p.addDocument("slow", "p1", "Slow", prose(1200))
	p.embedder.delay = 2 * time.Second

	start := time.Now()
	_, err := p.processor.Process(context.Background(), "slow", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)

	doc, _ := p.docs.GetDocument(context.Background(), "slow")
	assert.Equal(t, domain.StatusFailed, doc.Status)
	assert.True(t, strings.HasPrefix(doc.ErrorMessage, "timeout:"), doc.ErrorMessage)
}

func TestDocumentProcessor_RejectsConcurrentRound(t *testing.T) {
	p := newPipeline(ProcessorConfig{})
	p.addDocument("alpha", "p1", "Alpha", prose(100))
	ctx := context.Background()
	live := time.Now().UTC()
	require.NoError(t, p.docs.BeginProcessing(ctx, "alpha", domain.ProcessingClaim{From: domain.StatusPending, StartedAt: live}))

	_, err := p.processor.Process(ctx, "alpha", true)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	doc, _ := p.docs.GetDocument(ctx, "alpha")
	assert.Equal(t, domain.StatusProcessing, doc.Status)
	assert.True(t, live.Equal(*doc.ProcessingStartedAt))
}

// gatedDocs holds every GetDocument caller until all of them have read, so
// racing rounds observe the same status before any of them writes.
type gatedDocs struct {
	*memory.DocumentStore
	readers sync.WaitGroup
}

func (g *gatedDocs) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	doc, err := g.DocumentStore.GetDocument(ctx, id)
	g.readers.Done()
	g.readers.Wait()
	return doc, err
}

func TestDocumentProcessor_ConcurrentRoundsOneWins(t *testing.T) {
	p := newPipeline(ProcessorConfig{})
	p.addDocument("alpha", "p1", "Alpha", prose(5000))
	gated := &gatedDocs{DocumentStore: p.docs}
	gated.readers.Add(2)
	processor := NewDocumentProcessor(gated, p.blobs, normalisers.NewRegistry(plaintext.New()),
		chunker.New(), p.embedder, p.index, ProcessorConfig{ChunkSize: 1000})
	ctx := context.Background()

	var wg sync.WaitGroup
	outcomes := make([]*driving.ProcessOutcome, 2)
	errs := make([]error, 2)
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i], errs[i] = processor.Process(ctx, "alpha", true)
		}()
	}
	wg.Wait()

	var winner *driving.ProcessOutcome
	losers := 0
	for i := range errs {
		if errs[i] == nil {
			winner = outcomes[i]
			continue
		}
		assert.ErrorIs(t, errs[i], domain.ErrInvalidTransition)
		losers++
	}
	require.NotNil(t, winner)
	assert.Equal(t, 1, losers)

	doc, _ := p.docs.GetDocument(ctx, "alpha")
	assert.Equal(t, domain.StatusCompleted, doc.Status)
	assert.Nil(t, doc.ProcessingStartedAt)
	assert.Equal(t, winner.ChunkCount, p.index.Count())
}

func TestDocumentProcessor_TakesOverAbandonedRound(t *testing.T) {
	p := newPipeline(ProcessorConfig{Timeout: time.Minute})
	p.addDocument("alpha", "p1", "Alpha", prose(1500))
	ctx := context.Background()
	abandoned := time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, p.docs.BeginProcessing(ctx, "alpha", domain.ProcessingClaim{From: domain.StatusPending, StartedAt: abandoned}))

	outcome, err := p.processor.Process(ctx, "alpha", false)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, outcome.Status)
	assert.Equal(t, 2, outcome.ChunkCount)

	doc, _ := p.docs.GetDocument(ctx, "alpha")
	assert.Equal(t, domain.StatusCompleted, doc.Status)
}

func TestDocumentProcessor_LostLeaseCannotFinish(t *testing.T) {
	p := newPipeline(ProcessorConfig{})
	p.addDocument("alpha", "p1", "Alpha", prose(1500))
	ctx := context.Background()

	round, err := p.processor.Begin(ctx, "alpha", false)
	require.NoError(t, err)

	newer := round.StartedAt.Add(time.Hour)
	require.NoError(t, p.docs.BeginProcessing(ctx, "alpha", domain.ProcessingClaim{
		From: domain.StatusProcessing, FromStartedAt: &round.StartedAt, StartedAt: newer,
	}))

	_, err = p.processor.Run(ctx, round)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	doc, _ := p.docs.GetDocument(ctx, "alpha")
	assert.Equal(t, domain.StatusProcessing, doc.Status)
	assert.True(t, newer.Equal(*doc.ProcessingStartedAt))
}

func TestDocumentProcessor_BeginWritesProcessing(t *testing.T) {
	p := newPipeline(ProcessorConfig{})
	p.addDocument("alpha", "p1", "Alpha", prose(1500))
	ctx := context.Background()

	round, err := p.processor.Begin(ctx, "alpha", false)
	require.NoError(t, err)
	assert.False(t, round.Skipped)

	doc, _ := p.docs.GetDocument(ctx, "alpha")
	assert.Equal(t, domain.StatusProcessing, doc.Status)
	assert.Equal(t, int32(0), p.embedder.calls.Load())

	_, err = p.processor.Begin(ctx, "alpha", true)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	outcome, err := p.processor.Run(ctx, round)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, outcome.Status)

	skipped, err := p.processor.Begin(ctx, "alpha", false)
	require.NoError(t, err)
	assert.True(t, skipped.Skipped)
	outcome, err = p.processor.Run(ctx, skipped)
	require.NoError(t, err)
	assert.True(t, outcome.Skipped)
}

func TestDocumentProcessor_EmptyDocumentCompletes(t *testing.T) {
	p := newPipeline(ProcessorConfig{})
	p.addDocument("empty", "p1", "Empty", "")

	outcome, err := p.processor.Process(context.Background(), "empty", false)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, outcome.Status)
	assert.Zero(t, outcome.ChunkCount)
}

func TestDocumentProcessor_UnknownMIMETypeFallsBack(t *testing.T) {
	p := newPipeline(ProcessorConfig{})
	p.blobs.put("blob://odd", "plain words in an odd container")
	_ = p.docs.SaveDocument(context.Background(), &domain.Document{
		ID: "odd", ProjectID: "p1", Name: "Odd", MIMEType: "application/x-unknown", SourceRef: "blob://odd",
	})

	outcome, err := p.processor.Process(context.Background(), "odd", false)
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.ChunkCount)
}

func TestDocumentProcessor_WithoutEmbedder(t *testing.T) {
	p := newPipeline(ProcessorConfig{})
	p.processor.embedder = nil
	p.addDocument("alpha", "p1", "Alpha", prose(1500))
	ctx := context.Background()

	_, err := p.processor.Process(ctx, "alpha", false)
	require.NoError(t, err)

	chunks, _, _ := p.index.ListChunks(ctx, "alpha", 10, 0)
	require.NotEmpty(t, chunks)
	assert.Nil(t, chunks[0].Embedding)

	results, err := p.index.KeywordSearch(ctx, "p1", "lazy dog", 10, domain.SearchFilters{})
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}

func TestDocumentProcessor_NotFound(t *testing.T) {
	p := newPipeline(ProcessorConfig{})

	_, err := p.processor.Process(context.Background(), "missing", false)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = p.processor.Process(context.Background(), " ", false)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDocumentProcessor_ReindexProject_TalliesFailures(t *testing.T) {
	p := newPipeline(ProcessorConfig{Workers: 2})
	p.addDocument("doc-1", "p1", "One", prose(1200))
	p.addDocument("doc-2", "p1", "Two", "FAILME "+prose(1200))
	p.addDocument("doc-3", "p1", "Three", prose(2500))
	p.addDocument("doc-4", "p2", "Elsewhere", prose(100))
	p.embedder.failOn = "FAILME"
	ctx := context.Background()

	report, err := p.processor.ReindexProject(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, report.Results, 3)
	assert.Equal(t, 2, report.Succeeded())
	assert.Equal(t, 1, report.Failed())

	byID := map[string]int{}
	for i, r := range report.Results {
		byID[r.DocumentID] = i
	}
	assert.NoError(t, report.Results[byID["doc-1"]].Err)
	assert.Equal(t, 2, report.Results[byID["doc-1"]].ChunkCount)
	assert.Error(t, report.Results[byID["doc-2"]].Err)
	assert.NoError(t, report.Results[byID["doc-3"]].Err)
	assert.Equal(t, 3, report.Results[byID["doc-3"]].ChunkCount)

	for id, want := range map[string]domain.DocumentStatus{
		"doc-1": domain.StatusCompleted,
		"doc-2": domain.StatusFailed,
		"doc-3": domain.StatusCompleted,
		"doc-4": domain.StatusPending,
	} {
		doc, _ := p.docs.GetDocument(ctx, id)
		assert.Equal(t, want, doc.Status, id)
	}
}

func TestDocumentProcessor_ReindexProject_ManyDocuments(t *testing.T) {
	p := newPipeline(ProcessorConfig{Workers: 3})
	for i := range 12 {
		p.addDocument(fmt.Sprintf("doc-%02d", i), "p1", "Doc", prose(300))
	}

	report, err := p.processor.ReindexProject(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 12, report.Succeeded())
	assert.Equal(t, 12, p.index.Count())
}

func TestDocumentProcessor_Chunks(t *testing.T) {
	p := newPipeline(ProcessorConfig{ChunkSize: 100})
	p.addDocument("alpha", "p1", "Alpha", prose(1000))
	ctx := context.Background()
	_, err := p.processor.Process(ctx, "alpha", false)
	require.NoError(t, err)

	page, err := p.processor.Chunks(ctx, "alpha", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultChunkPageSize, page.Limit)
	assert.Equal(t, page.Total, len(page.Chunks))

	second, err := p.processor.Chunks(ctx, "alpha", 3, 3)
	require.NoError(t, err)
	require.Len(t, second.Chunks, 3)
	assert.Equal(t, 3, second.Chunks[0].Index)
	assert.Equal(t, page.Total, second.Total)

	_, err = p.processor.Chunks(ctx, "alpha", MaxChunkPageSize+1, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = p.processor.Chunks(ctx, "alpha", 10, -1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = p.processor.Chunks(ctx, "missing", 10, 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentProcessor_ProjectDocuments(t *testing.T) {
	p := newPipeline(ProcessorConfig{})
	p.addDocument("a", "p1", "A", "x")
	_ = p.docs.SaveDocument(context.Background(), &domain.Document{ID: "gone", ProjectID: "p1", Deleted: true})

	docs, err := p.processor.ProjectDocuments(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a", docs[0].ID)

	_, err = p.processor.ProjectDocuments(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
