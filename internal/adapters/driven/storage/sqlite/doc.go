// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection:
//
//   - DocumentMetadataStore: Document records and processing status
//   - IndexStore: Chunk entries with embeddings and an FTS5 keyword index
//   - QueryIndex: Query embeddings for similar-question lookup
//   - QueryStore: Queries, responses and feedback
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Search
//
// Keyword search uses FTS5 with bm25 ranking; scores are negated so higher is
// better. Vector search is an exact cosine scan over the project's embeddings.
//
// # Data Location
//
// By default, the database is stored at ~/.sercha-rag/data/rag.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
