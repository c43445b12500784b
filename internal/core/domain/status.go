package domain

import "fmt"

// DocumentStatus is the processing state of a document.
type DocumentStatus string

// Document processing states.
const (
	// StatusPending is the initial state after upload.
	StatusPending DocumentStatus = "pending"

	// StatusProcessing is written as soon as a processing round starts.
	StatusProcessing DocumentStatus = "processing"

	// StatusCompleted means every chunk of the current round is indexed.
	StatusCompleted DocumentStatus = "completed"

	// StatusFailed means the last round failed; ErrorMessage explains why.
	StatusFailed DocumentStatus = "failed"
)

// IsValid returns true if the status is recognised.
func (s DocumentStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for states that end a processing round.
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// String returns the string representation.
func (s DocumentStatus) String() string {
	return string(s)
}

// CanTransitionTo reports whether the state machine allows moving to next.
//
//	pending    -> processing
//	processing -> completed | failed
//	completed  -> processing   (reindex)
//	failed     -> processing   (reprocess)
//
// A PROCESSING document is re-claimed only once its lease has expired, which
// is decided by the document store's compare-and-set, not by this table.
func (s DocumentStatus) CanTransitionTo(next DocumentStatus) bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// ValidateTransition returns ErrInvalidTransition when the move is not allowed.
func ValidateTransition(from, to DocumentStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
