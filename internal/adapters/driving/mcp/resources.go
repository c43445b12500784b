package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// uriScheme is the custom URI scheme for sercha-rag resources.
	uriScheme = "sercha-rag://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Template for a document's indexed chunks.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "documents/{documentId}/chunks",
		Name:        "document-chunks",
		Description: "Indexed chunks of a document, in order",
		MIMEType:    "application/json",
	}, s.handleChunksResource)

	// Template for a project's question history.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "projects/{projectId}/queries",
		Name:        "project-queries",
		Description: "Recent questions asked in a project, with their answers",
		MIMEType:    "application/json",
	}, s.handleQueriesResource)
}

// handleChunksResource returns the first page of a document's chunks.
func (s *Server) handleChunksResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Processor == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	docID := extractBetween(req.Params.URI, uriScheme+"documents/", "/chunks")
	if docID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	page, err := s.ports.Processor.Chunks(ctx, docID, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}

	type chunkInfo struct {
		Index   int    `json:"index"`
		Content string `json:"content"`
	}
	infos := make([]chunkInfo, len(page.Chunks))
	for i, c := range page.Chunks {
		infos[i] = chunkInfo{Index: c.Index, Content: c.Content}
	}

	return jsonResource(req.Params.URI, map[string]any{"total": page.Total, "chunks": infos})
}

// handleQueriesResource returns a project's most recent queries.
func (s *Server) handleQueriesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Query == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	projectID := extractBetween(req.Params.URI, uriScheme+"projects/", "/queries")
	if projectID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	queries, err := s.ports.Query.List(ctx, projectID, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("listing queries: %w", err)
	}

	type queryInfo struct {
		ID      string   `json:"id"`
		Query   string   `json:"query"`
		Answers []string `json:"answers"`
	}
	infos := make([]queryInfo, len(queries))
	for i, q := range queries {
		infos[i] = queryInfo{ID: q.Query.ID, Query: q.Query.Text, Answers: make([]string, len(q.Responses))}
		for j, r := range q.Responses {
			infos[i].Answers[j] = r.AnswerText
		}
	}

	return jsonResource(req.Params.URI, infos)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractBetween returns the path segment of uri between prefix and suffix,
// e.g. the document ID of sercha-rag://documents/{documentId}/chunks.
func extractBetween(uri, prefix, suffix string) string {
	if !strings.HasPrefix(uri, prefix) || !strings.HasSuffix(uri, suffix) {
		return ""
	}
	id := strings.TrimSuffix(strings.TrimPrefix(uri, prefix), suffix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
