package markdown

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func TestSupportedMIMETypes(t *testing.T) {
	assert.Contains(t, New().SupportedMIMETypes(), "text/markdown")
	assert.Equal(t, 50, New().Priority())
}

func TestNormalise_Success(t *testing.T) {
	raw := &domain.RawDocument{
		URI:     "/notes/readme.md",
		Content: []byte("# Project Title\r\n\r\nSome **bold** and a [link](http://x.y).\r\n"),
	}

	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "Project Title", result.Title)
	assert.Equal(t, "Project Title\n\nSome bold and a link.", result.Text)
}

func TestNormalise_TitleFallback(t *testing.T) {
	raw := &domain.RawDocument{URI: "/notes/release_notes.md", Content: []byte("no heading here")}

	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "release notes", result.Title)
}

func TestStrip(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"headings", "## Section\ntext", "Section\ntext"},
		{"emphasis", "*a* _b_ **c** __d__", "a b c d"},
		{"inline code kept", "run `go test`", "run go test"},
		{"fence markers removed", "```go\nfmt.Println()\n```", "fmt.Println()"},
		{"image alt kept", "![diagram](img.png)", "diagram"},
		{"lists", "- one\n* two\n1. three", "one\ntwo\nthree"},
		{"blockquote", "> quoted", "quoted"},
		{"snake case untouched", "call snake_case_name", "call snake_case_name"},
		{"strikethrough", "~~old~~ new", "old new"},
		{"collapses blank lines", "a\n\n\n\nb", "a\n\nb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Strip(tt.input))
		})
	}
}

func TestNormalise_NilDocument(t *testing.T) {
	_, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
