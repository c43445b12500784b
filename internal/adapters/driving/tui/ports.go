// Package tui provides an interactive terminal user interface for asking
// questions about a project's documents and browsing raw retrieval results.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"fmt"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// DefaultUserID owns queries submitted without an explicit user.
const DefaultUserID = "local"

// Ports aggregates the driving ports and session scope used by the TUI.
type Ports struct {
	// Query answers questions. Required.
	Query driving.QueryService

	// Search runs raw retrieval for the search view. Optional.
	Search driving.SearchService

	// ProjectID scopes every question and search. Required.
	ProjectID string

	// UserID owns the submitted queries.
	UserID string
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil {
		return ErrInvalidPorts
	}
	if p.Query == nil {
		return fmt.Errorf("%w: %w", ErrInvalidPorts, ErrMissingQueryService)
	}
	if p.ProjectID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidPorts, ErrMissingProject)
	}
	return nil
}

func (p *Ports) user() string {
	if p.UserID == "" {
		return DefaultUserID
	}
	return p.UserID
}
