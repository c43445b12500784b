package html

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func TestSupportedMIMETypes(t *testing.T) {
	types := New().SupportedMIMETypes()
	assert.Contains(t, types, "text/html")
	assert.Contains(t, types, "application/xhtml+xml")
}

func TestNormalise_Success(t *testing.T) {
	raw := &domain.RawDocument{
		URI: "https://example.com/page.html",
		Content: []byte(`<html><head><title>Test &amp; Page</title><style>p{}</style></head>
<body><h1>Heading</h1><p>First&nbsp;paragraph.</p><script>alert(1)</script>
<!-- hidden --><ul><li>One</li><li>Two</li></ul></body></html>`),
	}

	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "Test & Page", result.Title)
	assert.Equal(t, "Heading\nFirst paragraph.\nOne\nTwo", result.Text)
}

func TestNormalise_TitleFallback(t *testing.T) {
	raw := &domain.RawDocument{URI: "/site/about-us.html", Content: []byte("<p>hi</p>")}

	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "about us", result.Title)
}

func TestStrip(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain text", "just text", "just text"},
		{"inline tags", "<b>bold</b> and <i>italic</i>", "bold and italic"},
		{"line breaks", "a<br>b<br/>c", "a\nb\nc"},
		{"entities", "&lt;tag&gt; &quot;q&quot;", `<tag> "q"`},
		{"collapses whitespace", "<p>  many   spaces </p>", "many spaces"},
		{"drops noscript", "<noscript>enable js</noscript><p>body</p>", "body"},
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
