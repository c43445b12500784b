package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// DocumentProcessor runs the indexing pipeline for documents.
type DocumentProcessor interface {
	// Process runs one processing round for a document. Unless force is set,
	// an already completed document is left untouched and Skipped is reported.
	Process(ctx context.Context, documentID string, force bool) (*ProcessOutcome, error)

	// Reprocess removes the document's existing chunks and runs a new round.
	Reprocess(ctx context.Context, documentID string) (*ProcessOutcome, error)

	// Begin claims a document for a round and writes PROCESSING before it
	// returns. Unless force is set, a completed document yields a Skipped round.
	// A document held by a live round fails with domain.ErrInvalidTransition.
	Begin(ctx context.Context, documentID string, force bool) (*Round, error)

	// Run executes a round returned by Begin, typically in the background.
	Run(ctx context.Context, round *Round) (*ProcessOutcome, error)

	// ReindexProject reprocesses every non-deleted document in a project.
	// Individual document failures are tallied, never returned as the error.
	ReindexProject(ctx context.Context, projectID string) (*ReindexReport, error)

	// ProjectDocuments returns the documents a reindex would cover.
	ProjectDocuments(ctx context.Context, projectID string) ([]domain.Document, error)

	// Status returns the document's current processing state.
	Status(ctx context.Context, documentID string) (*domain.Document, error)

	// Chunks returns one page of a document's indexed chunks.
	Chunks(ctx context.Context, documentID string, limit, offset int) (*domain.ChunkPage, error)
}

// Round is a processing round claimed by Begin.
type Round struct {
	Document *domain.Document

	// StartedAt is the lease start written with PROCESSING.
	StartedAt time.Time

	// Skipped is true when nothing was claimed.
	Skipped bool
}

// ProcessOutcome reports a finished processing round.
type ProcessOutcome struct {
	DocumentID string
	Status     domain.DocumentStatus
	ChunkCount int

	// Skipped is true when the document was already processed and force was not set.
	Skipped bool
}

// DocumentResult is the outcome for one document in a project reindex.
type DocumentResult struct {
	DocumentID string
	ChunkCount int
	Err        error
}

// ReindexReport tallies a project reindex.
type ReindexReport struct {
	ProjectID string
	Results   []DocumentResult
}

// Succeeded returns the number of documents that completed.
func (r *ReindexReport) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the number of documents that failed.
func (r *ReindexReport) Failed() int {
	return len(r.Results) - r.Succeeded()
}
