package gdrive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func TestParseRef(t *testing.T) {
	id, err := ParseRef("gdrive://files/abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)

	id, err = ParseRef("gdrive://abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)

	for _, bad := range []string{"gs://bucket/x", "gdrive://files/", "gdrive://files/a/b"} {
		_, err := ParseRef(bad)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, bad)
	}
}

func TestExportFormat(t *testing.T) {
	assert.Equal(t, ExportMimeText, ExportFormat(MimeTypeGoogleDoc))
	assert.Equal(t, ExportMimeText, ExportFormat(MimeTypeGoogleSlides))
	assert.Equal(t, ExportMimeCSV, ExportFormat(MimeTypeGoogleSheet))
	assert.Empty(t, ExportFormat("application/pdf"))
}

func TestErrorClassifiers(t *testing.T) {
	assert.True(t, IsNotFound(&googleapi.Error{Code: http.StatusNotFound}))
	assert.True(t, IsForbidden(&googleapi.Error{Code: http.StatusForbidden}))
	assert.True(t, IsUnauthorized(&googleapi.Error{Code: http.StatusUnauthorized}))
	assert.True(t, IsRateLimited(&googleapi.Error{Code: http.StatusTooManyRequests}))
	assert.False(t, IsNotFound(assert.AnError))
}

func TestRateLimiter_Backoff(t *testing.T) {
	r := NewRateLimiter(100)
	r.RecordRateLimitError(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Wait(ctx), context.DeadlineExceeded)
}

func newTestStore(t *testing.T, handler http.HandlerFunc) *Store {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store, err := NewStore(context.Background(), Config{
		RequestsPerSecond: 1000,
		Options: []option.ClientOption{
			option.WithEndpoint(server.URL + "/"),
			option.WithHTTPClient(server.Client()),
		},
	})
	require.NoError(t, err)
	return store
}

func TestStore_Fetch(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/files/doc1/export"):
			assert.Equal(t, ExportMimeText, r.URL.Query().Get("mimeType"))
			_, _ = w.Write([]byte("Refund policy text"))
		case strings.HasSuffix(r.URL.Path, "/files/doc1"):
			_, _ = w.Write([]byte(`{"id":"doc1","name":"Refunds","mimeType":"` + MimeTypeGoogleDoc + `"}`))
		case strings.HasSuffix(r.URL.Path, "/files/pdf1") && r.URL.Query().Get("alt") == "media":
			_, _ = w.Write([]byte("%PDF-1.4"))
		case strings.HasSuffix(r.URL.Path, "/files/pdf1"):
			_, _ = w.Write([]byte(`{"id":"pdf1","name":"Terms","mimeType":"application/pdf"}`))
		case strings.HasSuffix(r.URL.Path, "/files/dir1"):
			_, _ = w.Write([]byte(`{"id":"dir1","name":"Folder","mimeType":"` + MimeTypeFolder + `"}`))
		case strings.HasSuffix(r.URL.Path, "/files/bin1"):
			_, _ = w.Write([]byte(`{"id":"bin1","name":"Old","mimeType":"text/plain","trashed":true}`))
		case strings.HasSuffix(r.URL.Path, "/files/locked"):
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":{"code":403,"message":"forbidden"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":404,"message":"not found"}}`))
		}
	})
	ctx := context.Background()

	data, err := store.Fetch(ctx, "gdrive://files/doc1")
	require.NoError(t, err)
	assert.Equal(t, "Refund policy text", string(data))

	data, err = store.Fetch(ctx, "gdrive://files/pdf1")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))

	_, err = store.Fetch(ctx, "gdrive://files/dir1")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = store.Fetch(ctx, "gdrive://files/bin1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = store.Fetch(ctx, "gdrive://files/missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = store.Fetch(ctx, "gdrive://files/locked")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}
