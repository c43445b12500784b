package driven

import "github.com/custodia-labs/sercha-rag/internal/core/domain"

// ChunkSplitter segments text into ordered spans.
// Implementations are pure: no I/O, and the same input always yields the same output.
type ChunkSplitter interface {
	// Split segments text into spans of roughly targetSize characters,
	// repeating overlap trailing characters of each span at the start of the next.
	// Empty text yields no spans.
	Split(text string, targetSize, overlap int) []domain.Span
}
