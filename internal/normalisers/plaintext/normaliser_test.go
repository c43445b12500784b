package plaintext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func TestSupportedMIMETypes(t *testing.T) {
	types := New().SupportedMIMETypes()
	assert.Contains(t, types, "text/plain")
	assert.Contains(t, types, "application/json")
	assert.Equal(t, 5, New().Priority())
}

func TestNormalise_Success(t *testing.T) {
	raw := &domain.RawDocument{
		URI:      "/path/to/my_document.txt",
		MIMEType: "text/plain",
		Content:  []byte("line one\r\nline two"),
	}

	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", result.Text)
	assert.Equal(t, "my document", result.Title)
}

func TestNormalise_InvalidUTF8(t *testing.T) {
	raw := &domain.RawDocument{Content: []byte{'o', 'k', 0xff, 0xfe, '!'}}

	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "ok�!", result.Text)
}

func TestNormalise_EmptyContent(t *testing.T) {
	result, err := New().Normalise(context.Background(), &domain.RawDocument{})
	require.NoError(t, err)
	assert.Empty(t, result.Text)
}

func TestNormalise_NilDocument(t *testing.T) {
	_, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
