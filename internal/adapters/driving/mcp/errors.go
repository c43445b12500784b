// Package mcp provides an MCP (Model Context Protocol) server adapter for sercha-rag.
// It lets AI assistants search a project's index, ask questions against it and
// check document processing status.
package mcp

import "errors"

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("mcp: search service is required")
