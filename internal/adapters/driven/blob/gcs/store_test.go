package gcs

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		ref        string
		defaultBkt string
		bucket     string
		object     string
		wantErr    bool
	}{
		{ref: "gs://docs/policies/refunds.md", bucket: "docs", object: "policies/refunds.md"},
		{ref: "gs:///refunds.md", defaultBkt: "fallback", bucket: "fallback", object: "refunds.md"},
		{ref: "refunds.md", defaultBkt: "fallback", bucket: "fallback", object: "refunds.md"},
		{ref: "refunds.md", wantErr: true},
		{ref: "gs://docs", wantErr: true},
		{ref: "gs://docs/", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			bucket, object, err := ParseRef(tt.ref, tt.defaultBkt)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.object, object)
		})
	}
}

func storeWith(open opener) *Store {
	return &Store{open: open}
}

func TestStore_Fetch(t *testing.T) {
	var gotBucket, gotObject string
	store := storeWith(func(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
		gotBucket, gotObject = bucket, object
		return io.NopCloser(strings.NewReader("Refunds take 14 days.")), nil
	})

	data, err := store.Fetch(context.Background(), "gs://docs/refunds.md")
	require.NoError(t, err)
	assert.Equal(t, "Refunds take 14 days.", string(data))
	assert.Equal(t, "docs", gotBucket)
	assert.Equal(t, "refunds.md", gotObject)
	assert.NoError(t, store.Close())
}

func TestStore_Fetch_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "missing object", err: storage.ErrObjectNotExist, want: domain.ErrNotFound},
		{name: "missing bucket", err: storage.ErrBucketNotExist, want: domain.ErrNotFound},
		{name: "forbidden", err: &googleapi.Error{Code: http.StatusForbidden}, want: domain.ErrForbidden},
		{name: "deadline", err: context.DeadlineExceeded, want: domain.ErrTimeout},
		{name: "other", err: errors.New("connection reset"), want: domain.ErrProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storeWith(func(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
				return nil, tt.err
			})
			_, err := store.Fetch(context.Background(), "gs://docs/refunds.md")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
