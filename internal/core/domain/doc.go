// Package domain defines the core business entities for Sercha RAG.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: An uploaded file and its processing status
//   - Chunk: A searchable, embedded span of a document's text
//   - Query and Response: A question and its generated answer
//   - RetrievalResult: One ranked chunk returned by a search
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
