package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// documentStore implements driven.DocumentMetadataStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentMetadataStore = (*documentStore)(nil)

// SaveDocument stores or updates a document. New documents start PENDING.
func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	if doc == nil || doc.ID == "" {
		return domain.NewValidationError("id", "is required")
	}
	status := doc.Status
	if status == "" {
		status = domain.StatusPending
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO documents (id, project_id, name, mime_type, source_ref, status, error_message, processed_at, deleted, processing_started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project_id = excluded.project_id,
			name = excluded.name,
			mime_type = excluded.mime_type,
			source_ref = excluded.source_ref,
			status = excluded.status,
			error_message = excluded.error_message,
			processed_at = excluded.processed_at,
			deleted = excluded.deleted,
			processing_started_at = excluded.processing_started_at
	`, doc.ID, doc.ProjectID, doc.Name, doc.MIMEType, doc.SourceRef, status.String(),
		nullString(doc.ErrorMessage), formatNullableTime(doc.ProcessedAt), boolToInt(doc.Deleted),
		formatNullableTime(doc.ProcessingStartedAt))
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, project_id, name, mime_type, source_ref, status, error_message, processed_at, deleted, processing_started_at
		FROM documents WHERE id = ?
	`, id)

	doc, err := scanDocument(row)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// SetStatus writes the document's processing status. A nil ProcessedAt
// leaves the stored value unchanged.
func (s *documentStore) SetStatus(ctx context.Context, id string, update domain.StatusUpdate) error {
	lease := formatNullableTime(update.Lease)
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE documents
		SET status = ?, error_message = ?, processed_at = COALESCE(?, processed_at),
			processing_started_at = CASE WHEN ? = 'processing' THEN processing_started_at ELSE NULL END
		WHERE id = ? AND (? IS NULL OR (status = 'processing' AND processing_started_at = ?))
	`, update.Status.String(), nullString(update.ErrorMessage), formatNullableTime(update.ProcessedAt),
		update.Status.String(), id, lease, lease)
	if err != nil {
		return fmt.Errorf("setting document status: %w", err)
	}
	return s.checkApplied(ctx, res, id, "setting document status")
}

// BeginProcessing moves the document into PROCESSING with a single
// conditional UPDATE, so only one of several racing callers matches.
func (s *documentStore) BeginProcessing(ctx context.Context, id string, claim domain.ProcessingClaim) error {
	takeover := claim.From == domain.StatusProcessing
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE documents
		SET status = 'processing', error_message = NULL, processing_started_at = ?
		WHERE id = ? AND status = ? AND (? = 0 OR processing_started_at IS ?)
	`, formatTime(claim.StartedAt), id, claim.From.String(), boolToInt(takeover),
		formatNullableTime(claim.FromStartedAt))
	if err != nil {
		return fmt.Errorf("beginning processing: %w", err)
	}
	return s.checkApplied(ctx, res, id, "beginning processing")
}

// checkApplied turns a conditional write that matched no row into
// ErrNotFound or ErrInvalidTransition.
func (s *documentStore) checkApplied(ctx context.Context, res sql.Result, id, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n > 0 {
		return nil
	}

	var status string
	err = s.store.db.QueryRowContext(ctx, `SELECT status FROM documents WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: document %s is %s", domain.ErrInvalidTransition, id, status)
}

// ListProjectDocuments returns the non-deleted documents of a project ordered by ID.
func (s *documentStore) ListProjectDocuments(ctx context.Context, projectID string) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, project_id, name, mime_type, source_ref, status, error_message, processed_at, deleted, processing_started_at
		FROM documents WHERE project_id = ? AND deleted = 0
		ORDER BY id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	docs := make([]domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*domain.Document, error) {
	var doc domain.Document
	var status string
	var errorMessage, processedAt, startedAt sql.NullString
	var deleted int
	err := row.Scan(&doc.ID, &doc.ProjectID, &doc.Name, &doc.MIMEType, &doc.SourceRef,
		&status, &errorMessage, &processedAt, &deleted, &startedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.Status = domain.DocumentStatus(status)
	doc.ErrorMessage = errorMessage.String
	doc.ProcessedAt = parseNullableTime(processedAt)
	doc.ProcessingStartedAt = parseNullableTime(startedAt)
	doc.Deleted = deleted != 0
	return &doc, nil
}
