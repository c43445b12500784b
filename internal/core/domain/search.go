package domain

// RetrievalMode selects how a search request retrieves chunks.
type RetrievalMode string

// Available retrieval modes.
const (
	// RetrievalVector uses k-NN cosine similarity over chunk embeddings.
	RetrievalVector RetrievalMode = "vector"

	// RetrievalKeyword uses conjunctive lexical matching.
	RetrievalKeyword RetrievalMode = "keyword"

	// RetrievalHybrid runs vector and keyword retrieval and fuses the results.
	RetrievalHybrid RetrievalMode = "hybrid"
)

// IsValid returns true if the mode is recognised.
func (m RetrievalMode) IsValid() bool {
	switch m {
	case RetrievalVector, RetrievalKeyword, RetrievalHybrid:
		return true
	default:
		return false
	}
}

// RequiresEmbedding returns true if this mode needs an embedding provider.
func (m RetrievalMode) RequiresEmbedding() bool {
	return m == RetrievalVector || m == RetrievalHybrid
}

// String returns the string representation.
func (m RetrievalMode) String() string {
	return string(m)
}

// Description returns a human-readable description of the mode.
func (m RetrievalMode) Description() string {
	switch m {
	case RetrievalVector:
		return "Vector (semantic similarity)"
	case RetrievalKeyword:
		return "Keyword (lexical match)"
	case RetrievalHybrid:
		return "Hybrid (vector + keyword fusion)"
	default:
		return unknownDescription
	}
}

// AllRetrievalModes returns all available retrieval modes.
func AllRetrievalModes() []RetrievalMode {
	return []RetrievalMode{RetrievalVector, RetrievalKeyword, RetrievalHybrid}
}

// SearchFilters narrows a search.
type SearchFilters struct {
	// DocumentIDs restricts results to these documents when non-empty.
	DocumentIDs []string `json:"documentIds,omitempty"`
}

// SearchRequest configures a single retrieval call.
// Zero Limit, nil Threshold and empty Mode take the configured defaults.
type SearchRequest struct {
	ProjectID string
	Query     string
	Limit     int
	Threshold *float64
	Filters   SearchFilters
	Mode      RetrievalMode

	// QueryEmbedding, when set, is used for vector retrieval instead of
	// embedding Query again.
	QueryEmbedding []float32
}

// RetrievalResult is one ranked chunk produced by a search call.
// It is never persisted on its own, only as part of a Response snapshot.
type RetrievalResult struct {
	ChunkID    string        `json:"chunkId"`
	DocumentID string        `json:"documentId"`
	ChunkIndex int           `json:"chunkIndex"`
	Content    string        `json:"content"`
	Metadata   ChunkMetadata `json:"metadata"`
	Score      float64       `json:"score"`
	Source     RetrievalMode `json:"sourceSignal"`
}

// SearchResults is the outcome of a search call.
type SearchResults struct {
	Query   string
	Results []RetrievalResult
}

// Total returns the number of results.
func (r SearchResults) Total() int {
	return len(r.Results)
}

// SimilarQuery is a historical query near-duplicate of a new one.
type SimilarQuery struct {
	QueryID string  `json:"queryId"`
	Text    string  `json:"query"`
	Score   float64 `json:"score"`
}

// ChunkPage is one page of a document's chunks, ordered by chunk index.
type ChunkPage struct {
	DocumentID string
	Chunks     []Chunk
	Total      int
	Limit      int
	Offset     int
}
