package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure IndexStore implements the interfaces.
var (
	_ driven.IndexStore = (*IndexStore)(nil)
	_ driven.QueryIndex = (*IndexStore)(nil)
)

// IndexStore implements driven.IndexStore and driven.QueryIndex on the
// chunks, chunks_fts and query_embeddings tables.
type IndexStore struct {
	store      *Store
	dimensions int
}

// BulkUpsert writes chunks addressed by ID in a single transaction.
// Invalid entries are skipped and reported in a *domain.PartialIndexFailureError.
func (s *IndexStore) BulkUpsert(ctx context.Context, chunks []domain.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, project_id, chunk_index, content, start_offset, end_offset, embedding, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document_id = excluded.document_id,
			project_id = excluded.project_id,
			chunk_index = excluded.chunk_index,
			content = excluded.content,
			start_offset = excluded.start_offset,
			end_offset = excluded.end_offset,
			embedding = excluded.embedding,
			metadata = excluded.metadata
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	var failed []domain.BulkItemError
	written := 0
	for i := range chunks {
		c := &chunks[i]
		if reason := s.reject(c); reason != "" {
			failed = append(failed, domain.BulkItemError{ChunkID: c.ID, Reason: reason})
			continue
		}

		metaJSON, err := json.Marshal(c.Metadata)
		if err != nil {
			failed = append(failed, domain.BulkItemError{ChunkID: c.ID, Reason: "invalid metadata: " + err.Error()})
			continue
		}

		var embedding any
		if len(c.Embedding) > 0 {
			embedding = storage.EncodeVector(c.Embedding)
		}

		if _, err := stmt.ExecContext(ctx, c.ID, c.DocumentID, c.ProjectID, c.Index, c.Content,
			c.StartOffset, c.EndOffset, embedding, string(metaJSON)); err != nil {
			return 0, fmt.Errorf("saving chunk %s: %w", c.ID, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}

	if len(failed) > 0 {
		return written, &domain.PartialIndexFailureError{Indexed: written, Failed: failed}
	}
	return written, nil
}

func (s *IndexStore) reject(c *domain.Chunk) string {
	switch {
	case c.ID == "" || c.DocumentID == "":
		return "missing id"
	case c.Content == "":
		return "empty content"
	case s.dimensions > 0 && len(c.Embedding) > 0 && len(c.Embedding) != s.dimensions:
		return fmt.Sprintf("embedding has %d dimensions, want %d", len(c.Embedding), s.dimensions)
	}
	return ""
}

// DeleteByDocument removes every chunk of a document.
func (s *IndexStore) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID)
	if err != nil {
		return 0, fmt.Errorf("deleting chunks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deleting chunks: %w", err)
	}
	return int(n), nil
}

// VectorSearch scans the project's embedded chunks and returns the k most
// similar to vector. Chunks with embeddings of another size are skipped.
func (s *IndexStore) VectorSearch(
	ctx context.Context, projectID string, vector []float32, k int, filters domain.SearchFilters,
) ([]domain.RetrievalResult, error) {
	where, args := chunkFilter(projectID, filters)
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, document_id, chunk_index, content, metadata, embedding
		FROM chunks WHERE embedding IS NOT NULL AND `+where+`
		ORDER BY id
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	results := make([]domain.RetrievalResult, 0)
	for rows.Next() {
		var r domain.RetrievalResult
		var metaJSON string
		var blob []byte
		if err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.ChunkIndex, &r.Content, &metaJSON, &blob); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		emb, err := storage.DecodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("decoding chunk %s: %w", r.ChunkID, err)
		}
		if len(emb) != len(vector) {
			continue
		}
		if r.Score, err = storage.CosineSimilarity(vector, emb); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(metaJSON), &r.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling chunk metadata: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// KeywordSearch returns up to k chunks matching every query term, ranked by bm25.
func (s *IndexStore) KeywordSearch(
	ctx context.Context, projectID, query string, k int, filters domain.SearchFilters,
) ([]domain.RetrievalResult, error) {
	match := matchExpression(query)
	results := make([]domain.RetrievalResult, 0)
	if match == "" {
		return results, nil
	}

	where, args := chunkFilter(projectID, filters)
	args = append([]any{match}, args...)
	args = append(args, k)

	// bm25 is lower-is-better; negate it so scores rank descending like vector scores.
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT c.id, c.document_id, c.chunk_index, c.content, c.metadata, -bm25(chunks_fts) AS score
		FROM chunks_fts JOIN chunks c ON c.rowid = chunks_fts.rowid
		WHERE chunks_fts MATCH ? AND `+qualify(where)+`
		ORDER BY score DESC, c.id
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("keyword query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r domain.RetrievalResult
		var metaJSON string
		if err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.ChunkIndex, &r.Content, &metaJSON, &r.Score); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &r.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling chunk metadata: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return results, nil
}

// ListChunks returns one page of a document's chunks ordered by index.
func (s *IndexStore) ListChunks(ctx context.Context, documentID string, limit, offset int) ([]domain.Chunk, int, error) {
	var total int
	if err := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM chunks WHERE document_id = ?", documentID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting chunks: %w", err)
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, document_id, project_id, chunk_index, content, start_offset, end_offset, embedding, metadata
		FROM chunks WHERE document_id = ?
		ORDER BY chunk_index
		LIMIT ? OFFSET ?
	`, documentID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	chunks := make([]domain.Chunk, 0)
	for rows.Next() {
		var c domain.Chunk
		var blob []byte
		var metaJSON string
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ProjectID, &c.Index, &c.Content,
			&c.StartOffset, &c.EndOffset, &blob, &metaJSON); err != nil {
			return nil, 0, fmt.Errorf("scanning chunk: %w", err)
		}
		if len(blob) > 0 {
			if c.Embedding, err = storage.DecodeVector(blob); err != nil {
				return nil, 0, fmt.Errorf("decoding chunk %s: %w", c.ID, err)
			}
		}
		if err := json.Unmarshal([]byte(metaJSON), &c.Metadata); err != nil {
			return nil, 0, fmt.Errorf("unmarshaling chunk metadata: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, total, nil
}

// IndexQuery stores the embedding of a submitted query.
func (s *IndexStore) IndexQuery(ctx context.Context, query *domain.Query, vector []float32) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO query_embeddings (query_id, project_id, text, embedding)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(query_id) DO UPDATE SET embedding = excluded.embedding
	`, query.ID, query.ProjectID, query.Text, storage.EncodeVector(vector))
	if err != nil {
		return fmt.Errorf("saving query embedding: %w", err)
	}
	return nil
}

// SimilarQueries returns prior queries of the project nearest to vector.
func (s *IndexStore) SimilarQueries(
	ctx context.Context, projectID string, vector []float32, limit int,
) ([]domain.SimilarQuery, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT query_id, text, embedding FROM query_embeddings
		WHERE project_id = ? ORDER BY query_id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("querying query embeddings: %w", err)
	}
	defer rows.Close()

	similar := make([]domain.SimilarQuery, 0)
	for rows.Next() {
		var q domain.SimilarQuery
		var blob []byte
		if err := rows.Scan(&q.QueryID, &q.Text, &blob); err != nil {
			return nil, fmt.Errorf("scanning query embedding: %w", err)
		}
		emb, err := storage.DecodeVector(blob)
		if err != nil || len(emb) != len(vector) {
			continue
		}
		if q.Score, err = storage.CosineSimilarity(vector, emb); err != nil {
			return nil, err
		}
		similar = append(similar, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query embeddings: %w", err)
	}

	sort.SliceStable(similar, func(i, j int) bool { return similar[i].Score > similar[j].Score })
	if limit > 0 && len(similar) > limit {
		similar = similar[:limit]
	}
	return similar, nil
}

// Close is a no-op; the owning Store closes the database.
func (s *IndexStore) Close() error {
	return nil
}

// chunkFilter builds the project and document restriction over the chunks table.
func chunkFilter(projectID string, filters domain.SearchFilters) (string, []any) {
	where := "project_id = ?"
	args := []any{projectID}
	if len(filters.DocumentIDs) > 0 {
		where += " AND document_id IN (" + placeholders(len(filters.DocumentIDs)) + ")"
		for _, id := range filters.DocumentIDs {
			args = append(args, id)
		}
	}
	return where, args
}

// qualify prefixes chunkFilter columns with the joined table alias.
func qualify(where string) string {
	where = strings.ReplaceAll(where, "project_id", "c.project_id")
	return strings.ReplaceAll(where, "document_id", "c.document_id")
}

// matchExpression turns free text into an FTS5 conjunction of quoted terms,
// so user input can never inject FTS5 query syntax.
func matchExpression(query string) string {
	terms := storage.Terms(query)
	for i, t := range terms {
		terms[i] = `"` + t + `"`
	}
	return strings.Join(terms, " ")
}
