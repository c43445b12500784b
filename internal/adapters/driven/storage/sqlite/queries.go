package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// queryStore implements driven.QueryStore.
type queryStore struct {
	store *Store
}

var _ driven.QueryStore = (*queryStore)(nil)

// SaveQuery stores a new query.
func (s *queryStore) SaveQuery(ctx context.Context, q *domain.Query) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO queries (id, user_id, project_id, text, language, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, q.ID, q.UserID, q.ProjectID, q.Text, q.Language, formatTime(q.CreatedAt))
	if err != nil {
		return fmt.Errorf("saving query: %w", err)
	}
	return nil
}

// GetQuery retrieves a query by ID.
func (s *queryStore) GetQuery(ctx context.Context, id string) (*domain.Query, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, user_id, project_id, text, language, created_at
		FROM queries WHERE id = ?
	`, id)
	return scanQuery(row)
}

// ListQueries returns a project's queries, newest first.
func (s *queryStore) ListQueries(ctx context.Context, projectID string, limit, offset int) ([]domain.Query, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, user_id, project_id, text, language, created_at
		FROM queries WHERE project_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, projectID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying queries: %w", err)
	}
	defer rows.Close()

	queries := make([]domain.Query, 0)
	for rows.Next() {
		q, err := scanQuery(rows)
		if err != nil {
			return nil, err
		}
		queries = append(queries, *q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating queries: %w", err)
	}
	return queries, nil
}

// DeleteQuery removes a query. Responses and the query embedding cascade.
func (s *queryStore) DeleteQuery(ctx context.Context, id string) error {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM queries WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting query: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting query: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SaveResponse stores a new response. The query must exist.
func (s *queryStore) SaveResponse(ctx context.Context, r *domain.Response) error {
	if _, err := s.GetQuery(ctx, r.QueryID); err != nil {
		return err
	}

	paramsJSON, err := json.Marshal(r.ModelParams)
	if err != nil {
		return fmt.Errorf("marshalling model params: %w", err)
	}
	sources := r.SourceChunks
	if sources == nil {
		sources = []domain.RetrievalResult{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("marshalling source chunks: %w", err)
	}

	var rating any
	if r.FeedbackRating != nil {
		rating = *r.FeedbackRating
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO responses (id, query_id, answer_text, model_identifier, model_params,
			token_count, source_chunks, feedback_rating, feedback_comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.QueryID, r.AnswerText, r.ModelIdentifier, string(paramsJSON),
		r.TokenCount, string(sourcesJSON), rating, nullString(r.FeedbackComment), formatTime(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("saving response: %w", err)
	}
	return nil
}

// GetResponse retrieves a response by ID.
func (s *queryStore) GetResponse(ctx context.Context, id string) (*domain.Response, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, query_id, answer_text, model_identifier, model_params,
			token_count, source_chunks, feedback_rating, feedback_comment, created_at
		FROM responses WHERE id = ?
	`, id)
	return scanResponse(row)
}

// ListResponses returns the responses recorded for a query, oldest first.
func (s *queryStore) ListResponses(ctx context.Context, queryID string) ([]domain.Response, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, query_id, answer_text, model_identifier, model_params,
			token_count, source_chunks, feedback_rating, feedback_comment, created_at
		FROM responses WHERE query_id = ?
		ORDER BY created_at, id
	`, queryID)
	if err != nil {
		return nil, fmt.Errorf("querying responses: %w", err)
	}
	defer rows.Close()

	responses := make([]domain.Response, 0)
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		responses = append(responses, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating responses: %w", err)
	}
	return responses, nil
}

// SetFeedback records a rating on a response.
func (s *queryStore) SetFeedback(ctx context.Context, responseID string, feedback domain.Feedback) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE responses SET feedback_rating = ?, feedback_comment = ? WHERE id = ?
	`, feedback.Rating, nullString(feedback.Comment), responseID)
	if err != nil {
		return fmt.Errorf("saving feedback: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("saving feedback: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanQuery(row scanner) (*domain.Query, error) {
	var q domain.Query
	var createdAt string
	if err := row.Scan(&q.ID, &q.UserID, &q.ProjectID, &q.Text, &q.Language, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning query: %w", err)
	}
	q.CreatedAt = parseTime(createdAt)
	return &q, nil
}

func scanResponse(row scanner) (*domain.Response, error) {
	var r domain.Response
	var paramsJSON, sourcesJSON, createdAt string
	var rating sql.NullInt64
	var comment sql.NullString
	if err := row.Scan(&r.ID, &r.QueryID, &r.AnswerText, &r.ModelIdentifier, &paramsJSON,
		&r.TokenCount, &sourcesJSON, &rating, &comment, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning response: %w", err)
	}

	if err := json.Unmarshal([]byte(paramsJSON), &r.ModelParams); err != nil {
		return nil, fmt.Errorf("unmarshaling model params: %w", err)
	}
	if err := json.Unmarshal([]byte(sourcesJSON), &r.SourceChunks); err != nil {
		return nil, fmt.Errorf("unmarshaling source chunks: %w", err)
	}
	if rating.Valid {
		v := int(rating.Int64)
		r.FeedbackRating = &v
	}
	r.FeedbackComment = comment.String
	r.CreatedAt = parseTime(createdAt)
	return &r, nil
}
