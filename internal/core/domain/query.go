package domain

import "time"

// Query is a user question. Immutable once created.
type Query struct {
	ID        string
	UserID    string
	ProjectID string
	Text      string
	Language  string
	CreatedAt time.Time
}

// ModelParams are the generation parameters recorded with a Response.
type ModelParams struct {
	Provider    AIProvider `json:"provider"`
	Model       string     `json:"model"`
	Temperature float64    `json:"temperature"`
	MaxTokens   int        `json:"maxTokens"`
}

// Response is the generated answer to a Query.
// Feedback is the only mutation permitted after creation.
type Response struct {
	ID              string
	QueryID         string
	AnswerText      string
	ModelIdentifier string
	ModelParams     ModelParams
	TokenCount      int
	SourceChunks    []RetrievalResult
	FeedbackRating  *int
	FeedbackComment string
	CreatedAt       time.Time
}

// QueryWithResponses pairs a query with the responses recorded against it.
type QueryWithResponses struct {
	Query     Query
	Responses []Response
}

// QueryOptions are caller-supplied knobs for submitting a query.
// Zero values are replaced by DefaultQueryOptions.
type QueryOptions struct {
	Language        string
	Limit           int
	Threshold       *float64
	Mode            RetrievalMode
	UseHybridSearch *bool
	Filters         SearchFilters
	Provider        AIProvider
	Model           string
	Temperature     *float64
	MaxTokens       int
}

// DefaultQueryOptions returns the defaults used for unset options.
func DefaultQueryOptions() QueryOptions {
	temp, threshold := 0.7, 0.7
	return QueryOptions{
		Language:    "en",
		Limit:       5,
		Threshold:   &threshold,
		Mode:        RetrievalHybrid,
		Temperature: &temp,
		MaxTokens:   1000,
	}
}

// Source is one cited document in an answer.
type Source struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Snippet   string  `json:"snippet"`
	Relevance float64 `json:"relevance"`
}

// Answer is what submitting a query returns to the caller.
type Answer struct {
	ID         string    `json:"id"`
	Query      string    `json:"query"`
	Answer     string    `json:"answer"`
	ResponseID string    `json:"responseId"`
	Sources    []Source  `json:"sources"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Feedback is a rating on a Response.
type Feedback struct {
	Rating  int
	Comment string
}

// Validate checks the rating range.
func (f Feedback) Validate() error {
	if f.Rating < 1 || f.Rating > 5 {
		return NewValidationError("rating", "must be between 1 and 5")
	}
	return nil
}

// GenerateParams are the inputs to answer generation.
type GenerateParams struct {
	Provider    AIProvider
	Model       string
	Temperature float64
	MaxTokens   int
}
