// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// AnswerReceived carries the outcome of a submitted question back to the model.
type AnswerReceived struct {
	Question string
	Answer   *domain.Answer
	Err      error
}

// SearchCompleted carries retrieval results back to the model.
type SearchCompleted struct {
	Mode    domain.RetrievalMode
	Results *domain.SearchResults
	Err     error
}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewAsk is the question and answer view.
	ViewAsk ViewType = iota
	// ViewSearch is the raw retrieval view.
	ViewSearch
	// ViewHelp is the help/keybindings view.
	ViewHelp
)

// String returns the view name.
func (v ViewType) String() string {
	switch v {
	case ViewAsk:
		return "ask"
	case ViewSearch:
		return "search"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// ErrorOccurred reports an error to display.
type ErrorOccurred struct {
	Err error
}

// Quit requests the application to exit.
type Quit struct{}
