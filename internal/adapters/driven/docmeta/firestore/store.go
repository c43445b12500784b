// Package firestore keeps document metadata in a Cloud Firestore
// collection, for deployments where the document service owns records there.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.DocumentMetadataStore = (*Store)(nil)

// DefaultCollection holds one document per record, keyed by document ID.
const DefaultCollection = "documents"

// Config configures the Firestore store.
type Config struct {
	// ProjectID is the Google Cloud project (required).
	ProjectID string

	// Collection is the collection name (default: documents).
	Collection string

	// Options are passed to firestore.NewClient.
	Options []option.ClientOption
}

// record is the stored shape of a document.
type record struct {
	ProjectID    string     `firestore:"projectId"`
	Name         string     `firestore:"name"`
	MIMEType     string     `firestore:"mimeType"`
	SourceRef    string     `firestore:"sourceRef"`
	Status       string     `firestore:"status"`
	ErrorMessage string     `firestore:"errorMessage,omitempty"`
	ProcessedAt  *time.Time `firestore:"processedAt,omitempty"`
	Deleted      bool       `firestore:"deleted"`

	ProcessingStartedAt *time.Time `firestore:"processingStartedAt,omitempty"`
}

// Store implements driven.DocumentMetadataStore on Firestore.
type Store struct {
	client     *firestore.Client
	collection string
}

// NewStore connects to Firestore.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.ProjectID == "" {
		return nil, domain.NewValidationError("project", "is required for the firestore metadata store")
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}

	client, err := firestore.NewClient(ctx, cfg.ProjectID, cfg.Options...)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}
	return &Store{client: client, collection: cfg.Collection}, nil
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}

// SaveDocument creates or replaces a document record. New documents start PENDING.
func (s *Store) SaveDocument(ctx context.Context, doc *domain.Document) error {
	if doc == nil || doc.ID == "" {
		return domain.NewValidationError("id", "is required")
	}
	if _, err := s.client.Collection(s.collection).Doc(doc.ID).Set(ctx, toRecord(doc)); err != nil {
		return s.wrap("save document", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	snap, err := s.client.Collection(s.collection).Doc(id).Get(ctx)
	if err != nil {
		return nil, s.wrap("get document", err)
	}

	var rec record
	if err := snap.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("decoding document %s: %w", id, err)
	}
	return fromRecord(snap.Ref.ID, &rec), nil
}

// SetStatus writes the document's processing status. A nil ProcessedAt
// leaves the stored value unchanged. A lease-fenced write runs in a
// transaction so it cannot land after a takeover.
func (s *Store) SetStatus(ctx context.Context, id string, update domain.StatusUpdate) error {
	updates := []firestore.Update{
		{Path: "status", Value: update.Status.String()},
		{Path: "errorMessage", Value: update.ErrorMessage},
	}
	if update.ProcessedAt != nil {
		updates = append(updates, firestore.Update{Path: "processedAt", Value: *update.ProcessedAt})
	}
	if update.Status != domain.StatusProcessing {
		updates = append(updates, firestore.Update{Path: "processingStartedAt", Value: firestore.Delete})
	}

	ref := s.client.Collection(s.collection).Doc(id)
	if update.Lease == nil {
		if _, err := ref.Update(ctx, updates); err != nil {
			return s.wrap("set status", err)
		}
		return nil
	}

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		rec, err := readRecord(tx, ref)
		if err != nil {
			return err
		}
		if !leaseHeld(rec, update.Lease) {
			return fmt.Errorf("%w: document %s no longer held by this round", domain.ErrInvalidTransition, id)
		}
		return tx.Update(ref, updates)
	})
	return s.wrapTx("set status", err)
}

// BeginProcessing moves the document into PROCESSING inside a transaction,
// so concurrent claims on the same status serialise and only one commits.
func (s *Store) BeginProcessing(ctx context.Context, id string, claim domain.ProcessingClaim) error {
	ref := s.client.Collection(s.collection).Doc(id)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		rec, err := readRecord(tx, ref)
		if err != nil {
			return err
		}
		if !claimMatches(rec, claim) {
			return fmt.Errorf("%w: document %s is %s", domain.ErrInvalidTransition, id, rec.Status)
		}
		return tx.Update(ref, []firestore.Update{
			{Path: "status", Value: domain.StatusProcessing.String()},
			{Path: "errorMessage", Value: ""},
			{Path: "processingStartedAt", Value: claim.StartedAt.UTC()},
		})
	})
	return s.wrapTx("begin processing", err)
}

func readRecord(tx *firestore.Transaction, ref *firestore.DocumentRef) (*record, error) {
	snap, err := tx.Get(ref)
	if err != nil {
		return nil, err
	}
	var rec record
	if err := snap.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("decoding document %s: %w", ref.ID, err)
	}
	return &rec, nil
}

// claimMatches reports whether the stored record is still what the claimer observed.
func claimMatches(rec *record, claim domain.ProcessingClaim) bool {
	if domain.DocumentStatus(rec.Status) != claim.From {
		return false
	}
	if claim.From == domain.StatusProcessing {
		return domain.SameInstant(rec.ProcessingStartedAt, claim.FromStartedAt)
	}
	return true
}

// leaseHeld reports whether the record is PROCESSING under lease.
func leaseHeld(rec *record, lease *time.Time) bool {
	return domain.DocumentStatus(rec.Status) == domain.StatusProcessing &&
		domain.SameInstant(rec.ProcessingStartedAt, lease)
}

// wrapTx keeps lost compare-and-set races as transition errors.
func (s *Store) wrapTx(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrInvalidTransition) {
		return err
	}
	return s.wrap(op, err)
}

// ListProjectDocuments returns the non-deleted documents of a project ordered by ID.
func (s *Store) ListProjectDocuments(ctx context.Context, projectID string) ([]domain.Document, error) {
	iter := s.client.Collection(s.collection).
		Where("projectId", "==", projectID).
		Where("deleted", "==", false).
		Documents(ctx)
	defer iter.Stop()

	docs := make([]domain.Document, 0)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, s.wrap("list documents", err)
		}
		var rec record
		if err := snap.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("decoding document %s: %w", snap.Ref.ID, err)
		}
		docs = append(docs, *fromRecord(snap.Ref.ID, &rec))
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (s *Store) wrap(op string, err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return domain.ErrNotFound
	case codes.PermissionDenied, codes.Unauthenticated:
		return fmt.Errorf("%w: %w", domain.ErrForbidden, err)
	case codes.DeadlineExceeded:
		return domain.NewProviderError("firestore", op, fmt.Errorf("%w: %w", domain.ErrTimeout, err))
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewProviderError("firestore", op, fmt.Errorf("%w: %w", domain.ErrTimeout, err))
	}
	return domain.NewProviderError("firestore", op, err)
}

func toRecord(doc *domain.Document) record {
	st := doc.Status
	if st == "" {
		st = domain.StatusPending
	}
	rec := record{
		ProjectID:    doc.ProjectID,
		Name:         doc.Name,
		MIMEType:     doc.MIMEType,
		SourceRef:    doc.SourceRef,
		Status:       st.String(),
		ErrorMessage: doc.ErrorMessage,
		Deleted:      doc.Deleted,
	}
	if doc.ProcessedAt != nil && !doc.ProcessedAt.IsZero() {
		t := doc.ProcessedAt.UTC()
		rec.ProcessedAt = &t
	}
	if doc.ProcessingStartedAt != nil && !doc.ProcessingStartedAt.IsZero() {
		t := doc.ProcessingStartedAt.UTC()
		rec.ProcessingStartedAt = &t
	}
	return rec
}

func fromRecord(id string, rec *record) *domain.Document {
	doc := &domain.Document{
		ID:           id,
		ProjectID:    rec.ProjectID,
		Name:         rec.Name,
		MIMEType:     rec.MIMEType,
		SourceRef:    rec.SourceRef,
		Status:       domain.DocumentStatus(rec.Status),
		ErrorMessage: rec.ErrorMessage,
		Deleted:      rec.Deleted,
	}
	if rec.ProcessedAt != nil && !rec.ProcessedAt.IsZero() {
		t := rec.ProcessedAt.UTC()
		doc.ProcessedAt = &t
	}
	if rec.ProcessingStartedAt != nil && !rec.ProcessingStartedAt.IsZero() {
		t := rec.ProcessingStartedAt.UTC()
		doc.ProcessingStartedAt = &t
	}
	return doc
}
