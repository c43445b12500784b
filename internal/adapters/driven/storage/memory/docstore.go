package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentMetadataStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentMetadataStore.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]domain.Document),
	}
}

// SaveDocument stores or updates a document. New documents start PENDING.
func (s *DocumentStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	if doc == nil || doc.ID == "" {
		return domain.NewValidationError("id", "is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d := *doc
	if d.Status == "" {
		d.Status = domain.StatusPending
	}
	s.documents[d.ID] = d
	return nil
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// SetStatus writes the document's processing status.
func (s *DocumentStore) SetStatus(_ context.Context, id string, update domain.StatusUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	if update.Lease != nil && (doc.Status != domain.StatusProcessing || !domain.SameInstant(doc.ProcessingStartedAt, update.Lease)) {
		return fmt.Errorf("%w: document %s no longer held by this round", domain.ErrInvalidTransition, id)
	}
	doc.Status = update.Status
	doc.ErrorMessage = update.ErrorMessage
	if update.ProcessedAt != nil {
		t := *update.ProcessedAt
		doc.ProcessedAt = &t
	}
	if update.Status != domain.StatusProcessing {
		doc.ProcessingStartedAt = nil
	}
	s.documents[id] = doc
	return nil
}

// BeginProcessing moves the document into PROCESSING if it still matches claim.
func (s *DocumentStore) BeginProcessing(_ context.Context, id string, claim domain.ProcessingClaim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	if doc.Status != claim.From ||
		(claim.From == domain.StatusProcessing && !domain.SameInstant(doc.ProcessingStartedAt, claim.FromStartedAt)) {
		return fmt.Errorf("%w: document %s is %s", domain.ErrInvalidTransition, id, doc.Status)
	}
	started := claim.StartedAt
	doc.Status = domain.StatusProcessing
	doc.ErrorMessage = ""
	doc.ProcessingStartedAt = &started
	s.documents[id] = doc
	return nil
}

// ListProjectDocuments returns the non-deleted documents of a project ordered by ID.
func (s *DocumentStore) ListProjectDocuments(_ context.Context, projectID string) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Document, 0)
	for id := range s.documents {
		doc := s.documents[id]
		if doc.ProjectID == projectID && !doc.Deleted {
			result = append(result, doc)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}
