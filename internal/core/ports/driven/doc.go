// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - DocumentMetadataStore: Document lookup and status writes
//   - BlobStore: Read-only access to document bytes
//   - NormaliserRegistry: MIME-selected text extraction
//   - ChunkSplitter: Text segmentation policy
//   - IndexStore: Chunk index with vector and keyword search
//   - QueryStore: Query and response persistence
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - EmbeddingService: Generates vector embeddings. Without it, only keyword search works.
//   - AnswerGenerator: Produces answers from context. Without it, query submission fails
//     with ErrLLMUnavailable.
//   - QueryIndex: Similar-question lookup. Without it, queries are not indexed.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
