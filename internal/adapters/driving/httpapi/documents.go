package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

type processRequest struct {
	Force bool `json:"force"`
}

type processAccepted struct {
	DocumentID string `json:"documentId"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
}

type statusResponse struct {
	DocumentID   string     `json:"documentId"`
	Status       string     `json:"status"`
	ProcessedAt  *time.Time `json:"processedAt,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
}

type chunkView struct {
	ID          string               `json:"id"`
	Index       int                  `json:"chunkIndex"`
	Content     string               `json:"content"`
	StartOffset int                  `json:"startOffset"`
	EndOffset   int                  `json:"endOffset"`
	Metadata    domain.ChunkMetadata `json:"metadata"`
}

type chunksResponse struct {
	DocumentID string      `json:"documentId"`
	Chunks     []chunkView `json:"chunks"`
	Total      int         `json:"total"`
	Limit      int         `json:"limit"`
	Offset     int         `json:"offset"`
}

type reindexAccepted struct {
	ProjectID      string `json:"projectId"`
	DocumentsCount int    `json:"documentsCount"`
}

// handleProcess claims the document and runs the round in the background.
// PROCESSING is written before the response, so a second request conflicts.
// A completed document is reported as already processed unless force is set.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req processRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	s.startRound(w, r, "process:"+id, id, req.Force)
}

func (s *Server) handleReprocess(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.startRound(w, r, "reprocess:"+id, id, true)
}

func (s *Server) startRound(w http.ResponseWriter, r *http.Request, task, id string, force bool) {
	round, err := s.ports.Processor.Begin(r.Context(), id, force)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if round.Skipped {
		writeJSON(w, http.StatusOK, processAccepted{
			DocumentID: id,
			Status:     string(round.Document.Status),
			Message:    "already processed",
		})
		return
	}

	s.ports.Tasks.Submit(r.Context(), task, func(ctx context.Context) error {
		_, err := s.ports.Processor.Run(ctx, round)
		return err
	})
	writeJSON(w, http.StatusAccepted, processAccepted{DocumentID: id, Status: string(domain.StatusProcessing)})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	doc, err := s.ports.Processor.Status(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		DocumentID:   doc.ID,
		Status:       string(doc.Status),
		ProcessedAt:  doc.ProcessedAt,
		ErrorMessage: doc.ErrorMessage,
	})
}

func (s *Server) handleChunks(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	offset, err := intParam(r, "offset")
	if err != nil {
		writeError(w, r, err)
		return
	}

	page, err := s.ports.Processor.Chunks(r.Context(), r.PathValue("id"), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := chunksResponse{
		DocumentID: page.DocumentID,
		Chunks:     make([]chunkView, len(page.Chunks)),
		Total:      page.Total,
		Limit:      page.Limit,
		Offset:     page.Offset,
	}
	for i, c := range page.Chunks {
		resp.Chunks[i] = chunkView{
			ID:          c.ID,
			Index:       c.Index,
			Content:     c.Content,
			StartOffset: c.StartOffset,
			EndOffset:   c.EndOffset,
			Metadata:    c.Metadata,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleReindex counts the project's documents and reindexes them in the background.
func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	docs, err := s.ports.Processor.ProjectDocuments(r.Context(), projectID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.ports.Tasks.Submit(r.Context(), "reindex:"+projectID, func(ctx context.Context) error {
		report, err := s.ports.Processor.ReindexProject(ctx, projectID)
		if err != nil {
			return err
		}
		logger.Info("Reindexed project %s: %d succeeded, %d failed",
			projectID, report.Succeeded(), report.Failed())
		return nil
	})
	writeJSON(w, http.StatusAccepted, reindexAccepted{ProjectID: projectID, DocumentsCount: len(docs)})
}
