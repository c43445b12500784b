package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// DocumentMetadataStore is the document metadata collaborator.
// Document records are owned elsewhere; the pipeline only reads them
// and writes processing status.
type DocumentMetadataStore interface {
	// GetDocument retrieves a document by ID.
	// Returns domain.ErrNotFound if the document does not exist.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// SetStatus writes the document's processing status. Leaving PROCESSING
	// clears the lease. When update.Lease is set and the document is no longer
	// PROCESSING under that lease, nothing is written and
	// domain.ErrInvalidTransition is returned.
	SetStatus(ctx context.Context, id string, update domain.StatusUpdate) error

	// BeginProcessing atomically moves a document into PROCESSING if its status
	// (and, for a takeover, its lease start) still matches claim. It returns
	// domain.ErrInvalidTransition when another round got there first.
	BeginProcessing(ctx context.Context, id string, claim domain.ProcessingClaim) error

	// ListProjectDocuments returns the non-deleted documents in a project.
	ListProjectDocuments(ctx context.Context, projectID string) ([]domain.Document, error)

	// SaveDocument registers or updates a document record.
	SaveDocument(ctx context.Context, doc *domain.Document) error
}
