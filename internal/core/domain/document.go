package domain

import "time"

// Document is the processing view of an uploaded file.
// The record itself is owned by the document metadata collaborator;
// the pipeline only reads it and mutates Status, ErrorMessage and ProcessedAt.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// ProjectID scopes the document and all of its chunks.
	ProjectID string

	// Name is the human-readable file name, copied into chunk metadata.
	Name string

	// MIMEType selects the text extraction strategy.
	MIMEType string

	// SourceRef locates the document bytes in the blob store.
	SourceRef string

	// Status is the processing state.
	Status DocumentStatus

	// ErrorMessage describes the last failed processing round.
	ErrorMessage string

	// ProcessedAt is set when a processing round completes.
	ProcessedAt *time.Time

	// ProcessingStartedAt is the lease start of the round holding the
	// document in PROCESSING. It is nil in every other status.
	ProcessingStartedAt *time.Time

	// Deleted marks documents removed from the project.
	// Deleted documents are skipped by project reindexing.
	Deleted bool
}

// LeaseExpired reports whether a PROCESSING document's round has held it
// longer than lease. A PROCESSING document without a lease start counts as expired.
func (d *Document) LeaseExpired(now time.Time, lease time.Duration) bool {
	if d.Status != StatusProcessing {
		return false
	}
	if d.ProcessingStartedAt == nil {
		return true
	}
	return now.Sub(*d.ProcessingStartedAt) > lease
}

// StatusUpdate is a single status write against the document metadata store.
type StatusUpdate struct {
	Status       DocumentStatus
	ErrorMessage string
	ProcessedAt  *time.Time

	// Lease, when set, makes the write conditional: it applies only while the
	// document is PROCESSING under this lease start.
	Lease *time.Time
}

// ProcessingClaim is a compare-and-set move into PROCESSING.
type ProcessingClaim struct {
	// From is the status the caller observed.
	From DocumentStatus

	// FromStartedAt is the lease start the caller observed. It is compared
	// only when From is PROCESSING, which is a takeover of an expired lease.
	FromStartedAt *time.Time

	// StartedAt starts the new lease.
	StartedAt time.Time
}

// SameInstant reports whether two optional timestamps denote the same instant.
func SameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// Chunk is a bounded span of a document's extracted text.
// A chunk with its embedding is also the persisted index entry; the chunk ID
// is the natural key, so writing the same ID again overwrites in place.
type Chunk struct {
	// ID is derived deterministically from DocumentID and Index.
	ID string

	// DocumentID links to the parent document.
	DocumentID string

	// ProjectID scopes search results.
	ProjectID string

	// Content is the chunk text. Never empty.
	Content string

	// Index is the 0-based position within the document.
	Index int

	// StartOffset is the byte offset of Content in the extracted text.
	StartOffset int

	// EndOffset is the exclusive end offset. StartOffset < EndOffset.
	EndOffset int

	// Embedding is the vector representation for semantic search.
	Embedding []float32

	// Metadata holds descriptive fields copied from the document.
	Metadata ChunkMetadata
}

// ChunkMetadata is the fixed set of descriptive chunk fields plus an open
// extension map for adapter-specific values.
type ChunkMetadata struct {
	DocumentName   string         `json:"documentName,omitempty"`
	SourceMIMEType string         `json:"sourceMimeType,omitempty"`
	Extra          map[string]any `json:"extra,omitempty"`
}

// Span is a splitter output: text plus its offsets in the source text.
type Span struct {
	Content     string
	StartOffset int
	EndOffset   int
}

// RawDocument is the document bytes fetched from the blob store,
// before text extraction.
type RawDocument struct {
	// DocumentID links back to the document.
	DocumentID string

	// URI is the blob reference the bytes were read from.
	URI string

	// MIMEType is the declared content type.
	MIMEType string

	// Content is the raw bytes.
	Content []byte
}
