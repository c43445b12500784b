package httpapi

import (
	"net/http"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

type queryOptions struct {
	Language        string               `json:"language,omitempty"`
	Limit           int                  `json:"limit,omitempty"`
	Threshold       *float64             `json:"threshold,omitempty"`
	Mode            string               `json:"mode,omitempty"`
	UseHybridSearch *bool                `json:"useHybridSearch,omitempty"`
	Filters         domain.SearchFilters `json:"filters"`
	Provider        string               `json:"provider,omitempty"`
	Model           string               `json:"model,omitempty"`
	Temperature     *float64             `json:"temperature,omitempty"`
	MaxTokens       int                  `json:"maxTokens,omitempty"`
}

func (o queryOptions) toDomain() domain.QueryOptions {
	return domain.QueryOptions{
		Language:        o.Language,
		Limit:           o.Limit,
		Threshold:       o.Threshold,
		Mode:            domain.RetrievalMode(o.Mode),
		UseHybridSearch: o.UseHybridSearch,
		Filters:         o.Filters,
		Provider:        domain.AIProvider(o.Provider),
		Model:           o.Model,
		Temperature:     o.Temperature,
		MaxTokens:       o.MaxTokens,
	}
}

type submitQueryRequest struct {
	ProjectID string       `json:"projectId"`
	Query     string       `json:"query"`
	Options   queryOptions `json:"options"`
}

type feedbackRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

type responseView struct {
	ID              string                   `json:"id"`
	Answer          string                   `json:"answer"`
	Model           string                   `json:"model"`
	ModelParams     domain.ModelParams       `json:"modelParams"`
	TokenCount      int                      `json:"tokenCount"`
	Sources         []domain.RetrievalResult `json:"sourceChunks"`
	FeedbackRating  *int                     `json:"feedbackRating,omitempty"`
	FeedbackComment string                   `json:"feedbackComment,omitempty"`
	CreatedAt       time.Time                `json:"createdAt"`
}

type queryView struct {
	ID        string         `json:"id"`
	ProjectID string         `json:"projectId"`
	UserID    string         `json:"userId"`
	Query     string         `json:"query"`
	Language  string         `json:"language"`
	CreatedAt time.Time      `json:"createdAt"`
	Responses []responseView `json:"responses"`
}

func toQueryView(q domain.QueryWithResponses) queryView {
	v := queryView{
		ID:        q.Query.ID,
		ProjectID: q.Query.ProjectID,
		UserID:    q.Query.UserID,
		Query:     q.Query.Text,
		Language:  q.Query.Language,
		CreatedAt: q.Query.CreatedAt,
		Responses: make([]responseView, len(q.Responses)),
	}
	for i, r := range q.Responses {
		v.Responses[i] = responseView{
			ID:              r.ID,
			Answer:          r.AnswerText,
			Model:           r.ModelIdentifier,
			ModelParams:     r.ModelParams,
			TokenCount:      r.TokenCount,
			Sources:         r.SourceChunks,
			FeedbackRating:  r.FeedbackRating,
			FeedbackComment: r.FeedbackComment,
			CreatedAt:       r.CreatedAt,
		}
	}
	return v
}

func (s *Server) handleSubmitQuery(w http.ResponseWriter, r *http.Request) {
	var req submitQueryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	answer, err := s.ports.Query.Submit(r.Context(), req.ProjectID, userFrom(r.Context()), req.Query, req.Options.toDomain())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	feedback := domain.Feedback{Rating: req.Rating, Comment: req.Comment}
	if err := s.ports.Query.SubmitFeedback(r.Context(), r.PathValue("id"), r.PathValue("rid"), feedback); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleGetQuery(w http.ResponseWriter, r *http.Request) {
	q, err := s.ports.Query.Get(r.Context(), userFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toQueryView(*q))
}

func (s *Server) handleDeleteQuery(w http.ResponseWriter, r *http.Request) {
	if err := s.ports.Query.Delete(r.Context(), userFrom(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListQueries(w http.ResponseWriter, r *http.Request) {
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

	queries, err := s.ports.Query.List(r.Context(), r.PathValue("id"), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}

	views := make([]queryView, len(queries))
	for i, q := range queries {
		views[i] = toQueryView(q)
	}
	writeJSON(w, http.StatusOK, map[string]any{"queries": views, "total": len(views)})
}
