package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	ProjectID string `json:"project_id" jsonschema:"the project whose documents are searched"`
	Query     string `json:"query" jsonschema:"the search query"`
	Mode      string `json:"mode,omitempty" jsonschema:"retrieval mode: vector, keyword or hybrid (default from settings)"`
	Limit     int    `json:"limit,omitempty" jsonschema:"maximum number of results to return"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single retrieved chunk.
type SearchResultOutput struct {
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	ChunkIndex   int     `json:"chunk_index"`
	Score        float64 `json:"score"`
	Signal       string  `json:"signal"`
	Content      string  `json:"content"`
}

// AskInput is the input schema for the ask tool.
type AskInput struct {
	ProjectID string `json:"project_id" jsonschema:"the project whose documents answer the question"`
	Question  string `json:"question" jsonschema:"the question to answer"`
	Mode      string `json:"mode,omitempty" jsonschema:"retrieval mode: vector, keyword or hybrid"`
	Limit     int    `json:"limit,omitempty" jsonschema:"number of chunks used as context"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer     string          `json:"answer"`
	Found      bool            `json:"found"`
	QueryID    string          `json:"query_id,omitempty"`
	ResponseID string          `json:"response_id,omitempty"`
	Sources    []domain.Source `json:"sources,omitempty"`
}

// StatusInput is the input schema for the document_status tool.
type StatusInput struct {
	DocumentID string `json:"document_id" jsonschema:"the document to inspect"`
}

// StatusOutput is the output schema for the document_status tool.
type StatusOutput struct {
	DocumentID   string     `json:"document_id"`
	Name         string     `json:"name"`
	Status       string     `json:"status"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

var errUnavailable = errors.New("not available on this server")

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Search a project's indexed document chunks",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question using only a project's documents",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "document_status",
		Description: "Show a document's processing status",
	}, s.handleDocumentStatus)
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	results, err := s.ports.Search.Search(ctx, domain.SearchRequest{
		ProjectID: input.ProjectID,
		Query:     input.Query,
		Limit:     input.Limit,
		Mode:      domain.RetrievalMode(input.Mode),
	})
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results.Results)),
		Count:   results.Total(),
	}
	for i, r := range results.Results {
		output.Results[i] = SearchResultOutput{
			DocumentID:   r.DocumentID,
			DocumentName: r.Metadata.DocumentName,
			ChunkIndex:   r.ChunkIndex,
			Score:        r.Score,
			Signal:       string(r.Source),
			Content:      r.Content,
		}
	}

	return nil, output, nil
}

// handleAsk handles the ask tool invocation. Finding nothing relevant is an
// answer, reported with Found false rather than as a tool error.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	if s.ports.Query == nil {
		return nil, AskOutput{}, errUnavailable
	}

	opts := domain.QueryOptions{Limit: input.Limit, Mode: domain.RetrievalMode(input.Mode)}
	answer, err := s.ports.Query.Submit(ctx, input.ProjectID, s.ports.user(), input.Question, opts)
	if errors.Is(err, domain.ErrNoRelevantContent) {
		return nil, AskOutput{Answer: "No relevant content found in this project's documents."}, nil
	}
	if err != nil {
		return nil, AskOutput{}, err
	}

	return nil, AskOutput{
		Answer:     answer.Answer,
		Found:      true,
		QueryID:    answer.ID,
		ResponseID: answer.ResponseID,
		Sources:    answer.Sources,
	}, nil
}

func (s *Server) handleDocumentStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	if s.ports.Processor == nil {
		return nil, StatusOutput{}, errUnavailable
	}

	doc, err := s.ports.Processor.Status(ctx, input.DocumentID)
	if err != nil {
		return nil, StatusOutput{}, err
	}
	return nil, StatusOutput{
		DocumentID:   doc.ID,
		Name:         doc.Name,
		Status:       string(doc.Status),
		ProcessedAt:  doc.ProcessedAt,
		ErrorMessage: doc.ErrorMessage,
	}, nil
}
