package mcp

import (
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// DefaultUserID owns queries asked through MCP when Ports.UserID is empty.
const DefaultUserID = "mcp"

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Search provides retrieval over indexed chunks.
	Search driving.SearchService

	// Query answers questions. Optional; the ask tool reports it unavailable without it.
	Query driving.QueryService

	// Processor reports document status and chunks. Optional.
	Processor driving.DocumentProcessor

	// UserID owns the queries asked through the ask tool.
	UserID string
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p == nil || p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}

func (p *Ports) user() string {
	if p.UserID == "" {
		return DefaultUserID
	}
	return p.UserID
}
