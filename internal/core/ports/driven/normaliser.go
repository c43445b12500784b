package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// Normaliser extracts plain text from raw document bytes.
// Each normaliser handles specific MIME types (e.g., HTML, Markdown).
type Normaliser interface {
	// SupportedMIMETypes returns the MIME types this normaliser handles.
	SupportedMIMETypes() []string

	// Priority returns the selection priority (higher = preferred).
	// Generic MIME normalisers should return 50-89.
	// Fallback normalisers should return 1-9.
	Priority() int

	// Normalise extracts text from a raw document.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*NormaliseResult, error)
}

// NormaliseResult contains the output of normalisation.
// Chunking is handled separately by the ChunkSplitter.
type NormaliseResult struct {
	// Text is the extracted plain text.
	Text string

	// Title is the document title when the format carries one.
	Title string
}
