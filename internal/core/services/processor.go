package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure DocumentProcessor implements the interface.
var _ driving.DocumentProcessor = (*DocumentProcessor)(nil)

// Chunk listing bounds.
const (
	DefaultChunkPageSize = 100
	MaxChunkPageSize     = 1000
)

// cleanupTimeout bounds best-effort index cleanup after a failed round.
const cleanupTimeout = 30 * time.Second

// DefaultTimeout bounds a processing round when none is configured.
const DefaultTimeout = 5 * time.Minute

// ProcessorConfig tunes document processing.
type ProcessorConfig struct {
	// ChunkSize is the target chunk size in characters.
	ChunkSize int

	// ChunkOverlap is the number of characters repeated between chunks.
	ChunkOverlap int

	// Workers bounds concurrent documents during project reindexing.
	Workers int

	// Timeout bounds a single processing round, counted from the PROCESSING
	// write. Zero means DefaultTimeout. A round still PROCESSING after Timeout
	// plus the cleanup window is considered abandoned and may be taken over.
	Timeout time.Duration
}

// DocumentProcessor runs fetch, extract, split, embed and index for documents
// and drives the document status state machine.
// It never retries: a failed round leaves the document FAILED until a caller reprocesses it.
type DocumentProcessor struct {
	docs     driven.DocumentMetadataStore
	blobs    driven.BlobStore
	registry driven.NormaliserRegistry
	splitter driven.ChunkSplitter
	embedder driven.EmbeddingService
	index    driven.IndexStore
	cfg      ProcessorConfig
	now      func() time.Time
}

// NewDocumentProcessor creates a new document processor.
// The embedder is optional; without it chunks are indexed for keyword search only.
func NewDocumentProcessor(
	docs driven.DocumentMetadataStore,
	blobs driven.BlobStore,
	registry driven.NormaliserRegistry,
	splitter driven.ChunkSplitter,
	embedder driven.EmbeddingService,
	index driven.IndexStore,
	cfg ProcessorConfig,
) *DocumentProcessor {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &DocumentProcessor{
		docs:     docs,
		blobs:    blobs,
		registry: registry,
		splitter: splitter,
		embedder: embedder,
		index:    index,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Process runs one processing round for a document.
// Unless force is set, a COMPLETED document is reported as skipped.
func (p *DocumentProcessor) Process(ctx context.Context, documentID string, force bool) (*driving.ProcessOutcome, error) {
	round, err := p.Begin(ctx, documentID, force)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, round)
}

// Reprocess removes the document's chunks and runs a new round.
func (p *DocumentProcessor) Reprocess(ctx context.Context, documentID string) (*driving.ProcessOutcome, error) {
	return p.Process(ctx, documentID, true)
}

// Begin claims the document for a round, writing PROCESSING before it returns.
func (p *DocumentProcessor) Begin(ctx context.Context, documentID string, force bool) (*driving.Round, error) {
	doc, err := p.getDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	if !force && doc.Status == domain.StatusCompleted {
		logger.Debug("Document %s already processed, skipping", documentID)
		return &driving.Round{Document: doc, Skipped: true}, nil
	}
	return p.claim(ctx, doc)
}

// Run executes a claimed round through to COMPLETED or FAILED.
func (p *DocumentProcessor) Run(ctx context.Context, round *driving.Round) (*driving.ProcessOutcome, error) {
	if round == nil || round.Document == nil {
		return nil, domain.NewValidationError("round", "is required")
	}
	doc := round.Document
	if round.Skipped {
		return &driving.ProcessOutcome{DocumentID: doc.ID, Status: doc.Status, Skipped: true}, nil
	}

	// The deadline counts from the claim, so a round that waited in a queue
	// still finishes inside its lease.
	roundCtx, cancel := context.WithDeadline(ctx, round.StartedAt.Add(p.cfg.Timeout))
	defer cancel()

	count, err := p.run(roundCtx, doc)
	if err != nil {
		return nil, p.fail(ctx, round, err)
	}

	processedAt := p.now()
	if err := p.docs.SetStatus(context.WithoutCancel(ctx), doc.ID, domain.StatusUpdate{
		Status:      domain.StatusCompleted,
		ProcessedAt: &processedAt,
		Lease:       &round.StartedAt,
	}); err != nil {
		return nil, fmt.Errorf("set status completed: %w", err)
	}
	logger.Info("Document %s: %s -> %s (%d chunks)", doc.ID, domain.StatusProcessing, domain.StatusCompleted, count)

	return &driving.ProcessOutcome{DocumentID: doc.ID, Status: domain.StatusCompleted, ChunkCount: count}, nil
}

// ReindexProject reprocesses every non-deleted document of a project with a
// bounded worker pool. A document's failure is recorded in the report and never
// cancels its siblings.
func (p *DocumentProcessor) ReindexProject(ctx context.Context, projectID string) (*driving.ReindexReport, error) {
	docs, err := p.ProjectDocuments(ctx, projectID)
	if err != nil {
		return nil, err
	}

	logger.Section("Reindex Project")
	logger.Info("Reindexing %d documents in project %s (workers %d)", len(docs), projectID, p.cfg.Workers)

	report := &driving.ReindexReport{
		ProjectID: projectID,
		Results:   make([]driving.DocumentResult, len(docs)),
	}

	// Plain group: a failing document must not cancel the others.
	var g errgroup.Group
	g.SetLimit(p.cfg.Workers)
	for i := range docs {
		doc := docs[i]
		g.Go(func() error {
			res := driving.DocumentResult{DocumentID: doc.ID}
			outcome, err := p.runDocument(ctx, &doc)
			if err != nil {
				logger.Warn("Reindex of document %s failed: %v", doc.ID, err)
				res.Err = err
			} else {
				res.ChunkCount = outcome.ChunkCount
			}
			report.Results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	logger.Info("Reindex of project %s finished: %d succeeded, %d failed",
		projectID, report.Succeeded(), report.Failed())
	return report, nil
}

// ProjectDocuments returns the non-deleted documents of a project.
func (p *DocumentProcessor) ProjectDocuments(ctx context.Context, projectID string) ([]domain.Document, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, domain.NewValidationError("projectId", "is required")
	}
	docs, err := p.docs.ListProjectDocuments(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list project documents: %w", err)
	}
	live := docs[:0]
	for _, d := range docs {
		if !d.Deleted {
			live = append(live, d)
		}
	}
	return live, nil
}

// Status returns the document's current processing state.
func (p *DocumentProcessor) Status(ctx context.Context, documentID string) (*domain.Document, error) {
	return p.getDocument(ctx, documentID)
}

// Chunks returns one page of a document's chunks ordered by index.
func (p *DocumentProcessor) Chunks(ctx context.Context, documentID string, limit, offset int) (*domain.ChunkPage, error) {
	if limit == 0 {
		limit = DefaultChunkPageSize
	}
	if limit < 0 || limit > MaxChunkPageSize {
		return nil, domain.NewValidationError("limit", fmt.Sprintf("must be between 1 and %d", MaxChunkPageSize))
	}
	if offset < 0 {
		return nil, domain.NewValidationError("offset", "must not be negative")
	}
	if _, err := p.getDocument(ctx, documentID); err != nil {
		return nil, err
	}

	chunks, total, err := p.index.ListChunks(ctx, documentID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	return &domain.ChunkPage{
		DocumentID: documentID,
		Chunks:     chunks,
		Total:      total,
		Limit:      limit,
		Offset:     offset,
	}, nil
}

func (p *DocumentProcessor) getDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, domain.NewValidationError("documentId", "is required")
	}
	doc, err := p.docs.GetDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", documentID, err)
	}
	return doc, nil
}

func (p *DocumentProcessor) runDocument(ctx context.Context, doc *domain.Document) (*driving.ProcessOutcome, error) {
	round, err := p.claim(ctx, doc)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, round)
}

// lease is how long a round may hold a document in PROCESSING.
func (p *DocumentProcessor) lease() time.Duration {
	return p.cfg.Timeout + cleanupTimeout
}

// claim moves doc into PROCESSING with a compare-and-set against the status
// it was read with. A PROCESSING document is only claimed once its lease has
// expired, which recovers documents left behind by a crashed process.
func (p *DocumentProcessor) claim(ctx context.Context, doc *domain.Document) (*driving.Round, error) {
	if doc.Status == domain.StatusProcessing {
		if !doc.LeaseExpired(p.now(), p.lease()) {
			return nil, fmt.Errorf("document %s: %w: a round is in progress", doc.ID, domain.ErrInvalidTransition)
		}
		logger.Warn("Document %s: taking over abandoned round", doc.ID)
	} else if err := domain.ValidateTransition(doc.Status, domain.StatusProcessing); err != nil {
		return nil, fmt.Errorf("document %s: %w", doc.ID, err)
	}

	// Microseconds survive every metadata backend unchanged.
	startedAt := p.now().UTC().Truncate(time.Microsecond)
	if err := p.docs.BeginProcessing(ctx, doc.ID, domain.ProcessingClaim{
		From:          doc.Status,
		FromStartedAt: doc.ProcessingStartedAt,
		StartedAt:     startedAt,
	}); err != nil {
		return nil, fmt.Errorf("document %s: begin processing: %w", doc.ID, err)
	}
	logger.Info("Document %s: %s -> %s", doc.ID, doc.Status, domain.StatusProcessing)

	claimed := *doc
	claimed.Status = domain.StatusProcessing
	claimed.ErrorMessage = ""
	claimed.ProcessingStartedAt = &startedAt
	return &driving.Round{Document: &claimed, StartedAt: startedAt}, nil
}

// run executes the pipeline steps and returns the number of chunks written.
func (p *DocumentProcessor) run(ctx context.Context, doc *domain.Document) (int, error) {
	logger.Debug("Document %s: fetching %s", doc.ID, doc.SourceRef)
	content, err := p.blobs.Fetch(ctx, doc.SourceRef)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}

	raw := &domain.RawDocument{
		DocumentID: doc.ID,
		URI:        doc.SourceRef,
		MIMEType:   doc.MIMEType,
		Content:    content,
	}
	normalised, err := p.registry.Normalise(ctx, raw)
	if err != nil {
		return 0, fmt.Errorf("extract: %w", err)
	}
	logger.Debug("Document %s: extracted %d bytes of text", doc.ID, len(normalised.Text))

	spans := p.splitter.Split(normalised.Text, p.cfg.ChunkSize, p.cfg.ChunkOverlap)
	chunks := p.buildChunks(doc, spans)
	logger.Debug("Document %s: %d chunks (size %d, overlap %d)", doc.ID, len(chunks), p.cfg.ChunkSize, p.cfg.ChunkOverlap)

	if len(chunks) > 0 && p.embedder != nil {
		texts := make([]string, len(chunks))
		for i := range chunks {
			texts[i] = chunks[i].Content
		}
		vectors, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embed: %w", err)
		}
		if len(vectors) != len(chunks) {
			return 0, fmt.Errorf("embed: got %d vectors for %d chunks", len(vectors), len(chunks))
		}
		// vectors[i] belongs to chunks[i]; assembly is by index, not arrival.
		for i := range chunks {
			chunks[i].Embedding = vectors[i]
		}
	} else if p.embedder == nil {
		logger.Warn("Document %s: no embedding service, indexing for keyword search only", doc.ID)
	}

	// Delete then write, so a shorter new generation leaves no stale tail.
	removed, err := p.index.DeleteByDocument(ctx, doc.ID)
	if err != nil {
		return 0, fmt.Errorf("delete previous chunks: %w", err)
	}
	if removed > 0 {
		logger.Debug("Document %s: removed %d previous chunks", doc.ID, removed)
	}

	if len(chunks) == 0 {
		return 0, nil
	}

	written, err := p.index.BulkUpsert(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("index: %w", err)
	}
	if written != len(chunks) {
		return 0, &domain.PartialIndexFailureError{Indexed: written}
	}
	return written, nil
}

func (p *DocumentProcessor) buildChunks(doc *domain.Document, spans []domain.Span) []domain.Chunk {
	chunks := make([]domain.Chunk, 0, len(spans))
	for i, sp := range spans {
		chunks = append(chunks, domain.Chunk{
			ID:          ChunkID(doc.ID, i),
			DocumentID:  doc.ID,
			ProjectID:   doc.ProjectID,
			Content:     sp.Content,
			Index:       i,
			StartOffset: sp.StartOffset,
			EndOffset:   sp.EndOffset,
			Metadata: domain.ChunkMetadata{
				DocumentName:   doc.Name,
				SourceMIMEType: doc.MIMEType,
			},
		})
	}
	return chunks
}

// fail records a failed round on the document and removes whatever part of the
// new generation reached the index, so a FAILED document has no searchable chunks.
// A round that lost its lease leaves both the index and the status to the new holder.
func (p *DocumentProcessor) fail(ctx context.Context, round *driving.Round, cause error) error {
	doc := round.Document
	if errors.Is(cause, context.DeadlineExceeded) && !errors.Is(cause, domain.ErrTimeout) {
		cause = fmt.Errorf("%w: %w", domain.ErrTimeout, cause)
	}
	msg := cause.Error()
	if errors.Is(cause, domain.ErrTimeout) && !strings.HasPrefix(msg, "timeout:") {
		msg = "timeout: " + msg
	}

	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if current, err := p.docs.GetDocument(cleanupCtx, doc.ID); err == nil &&
		(current.Status != domain.StatusProcessing || !domain.SameInstant(current.ProcessingStartedAt, &round.StartedAt)) {
		logger.Warn("Document %s: round lost its lease, leaving cleanup to the current holder", doc.ID)
		return fmt.Errorf("process document %s: %w", doc.ID, cause)
	}

	if _, err := p.index.DeleteByDocument(cleanupCtx, doc.ID); err != nil {
		logger.Warn("Document %s: cleanup after failure: %v", doc.ID, err)
	}

	if err := p.docs.SetStatus(cleanupCtx, doc.ID, domain.StatusUpdate{
		Status:       domain.StatusFailed,
		ErrorMessage: msg,
		Lease:        &round.StartedAt,
	}); err != nil {
		logger.Error("Document %s: set status failed: %v", doc.ID, err)
		return errors.Join(cause, fmt.Errorf("set status failed: %w", err))
	}

	logger.Error("Document %s: %s -> %s: %s", doc.ID, domain.StatusProcessing, domain.StatusFailed, msg)
	return fmt.Errorf("process document %s: %w", doc.ID, cause)
}
