package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidTransition indicates a document status change the state machine forbids.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNoRelevantContent indicates retrieval legitimately found nothing.
	// This is an answer, not a fault.
	ErrNoRelevantContent = errors.New("no relevant content found")

	// ErrProvider is matched by every ProviderError.
	ErrProvider = errors.New("provider error")

	// ErrPartialIndexFailure is matched by every PartialIndexFailureError.
	ErrPartialIndexFailure = errors.New("partial index failure")

	// ErrTimeout indicates a processing round or provider call exceeded its deadline.
	ErrTimeout = errors.New("timeout")

	// ErrForbidden indicates the caller does not own the entity.
	ErrForbidden = errors.New("forbidden")

	// ErrLLMUnavailable indicates no answer-generation provider is configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Vector and hybrid search are disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrUnsupportedType indicates an unknown provider or backend name.
	ErrUnsupportedType = errors.New("unsupported type")
)

// ValidationError describes bad input shape. It matches ErrInvalidInput.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid input: %s %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidInput) true.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// ProviderError wraps a failure from an external backend: the embedding
// provider, the answer-generation provider or the index.
type ProviderError struct {
	// Provider names the backend (e.g. "openai", "sqlite").
	Provider string

	// Op is the failed operation (e.g. "embed", "generate", "bulk upsert").
	Op string

	// Err is the underlying error.
	Err error
}

// NewProviderError creates a ProviderError.
func NewProviderError(provider, op string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Op: op, Err: err}
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrProvider) true.
func (e *ProviderError) Is(target error) bool {
	return target == ErrProvider
}

// BulkItemError reports one rejected entry of a bulk index write.
type BulkItemError struct {
	ChunkID string
	Reason  string
}

// PartialIndexFailureError reports a bulk write where some entries were rejected.
type PartialIndexFailureError struct {
	// Indexed is the number of entries that were written.
	Indexed int

	// Failed lists the rejected entries.
	Failed []BulkItemError
}

func (e *PartialIndexFailureError) Error() string {
	ids := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		ids = append(ids, f.ChunkID)
	}
	return fmt.Sprintf("partial index failure: %d indexed, %d failed [%s]",
		e.Indexed, len(e.Failed), strings.Join(ids, ", "))
}

// Is makes errors.Is(err, ErrPartialIndexFailure) true.
func (e *PartialIndexFailureError) Is(target error) bool {
	return target == ErrPartialIndexFailure
}

// FailedIDs returns the chunk IDs that were rejected.
func (e *PartialIndexFailureError) FailedIDs() []string {
	ids := make([]string, len(e.Failed))
	for i, f := range e.Failed {
		ids[i] = f.ChunkID
	}
	return ids
}
