package httpapi

import (
	"net/http"
	"path"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

type searchRequest struct {
	ProjectID string               `json:"projectId"`
	Query     string               `json:"query"`
	Limit     int                  `json:"limit,omitempty"`
	Threshold *float64             `json:"threshold,omitempty"`
	Filters   domain.SearchFilters `json:"filters"`
}

type searchResponse struct {
	Query   string                   `json:"query"`
	Results []domain.RetrievalResult `json:"results"`
	Total   int                      `json:"total"`
}

type similarResponse struct {
	Query   string                `json:"query"`
	Queries []domain.SimilarQuery `json:"queries"`
	Total   int                   `json:"total"`
}

// handleSearch serves the vector, keyword and hybrid routes; the last path
// element names the retrieval mode.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	results, err := s.ports.Search.Search(r.Context(), domain.SearchRequest{
		ProjectID: req.ProjectID,
		Query:     req.Query,
		Limit:     req.Limit,
		Threshold: req.Threshold,
		Filters:   req.Filters,
		Mode:      domain.RetrievalMode(path.Base(r.URL.Path)),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := searchResponse{Query: results.Query, Results: results.Results, Total: results.Total()}
	if resp.Results == nil {
		resp.Results = []domain.RetrievalResult{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	similar, err := s.ports.Search.SimilarQueries(r.Context(), req.ProjectID, req.Query, req.Limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if similar == nil {
		similar = []domain.SimilarQuery{}
	}
	writeJSON(w, http.StatusOK, similarResponse{Query: req.Query, Queries: similar, Total: len(similar)})
}
