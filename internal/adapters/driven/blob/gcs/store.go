// Package gcs reads document blobs from Google Cloud Storage.
// References take the form gs://bucket/path/to/object.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.BlobStore = (*Store)(nil)

// MaxObjectSize bounds a single read (64MB).
const MaxObjectSize = 64 * 1024 * 1024

// opener opens an object for reading.
type opener func(ctx context.Context, bucket, object string) (io.ReadCloser, error)

// Config configures the GCS blob store.
type Config struct {
	// DefaultBucket is used for references without a bucket ("gs:///object" or a bare object name).
	DefaultBucket string

	// Options are passed to storage.NewClient, e.g. option.WithCredentialsFile.
	Options []option.ClientOption
}

// Store fetches objects from GCS using Application Default Credentials.
type Store struct {
	client        *storage.Client
	open          opener
	defaultBucket string
}

// NewStore creates a GCS-backed store.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	client, err := storage.NewClient(ctx, cfg.Options...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	s := &Store{client: client, defaultBucket: cfg.DefaultBucket}
	s.open = func(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
		return client.Bucket(bucket).Object(object).NewReader(ctx)
	}
	return s, nil
}

// Fetch reads the object referenced by sourceRef.
func (s *Store) Fetch(ctx context.Context, sourceRef string) ([]byte, error) {
	bucket, object, err := ParseRef(sourceRef, s.defaultBucket)
	if err != nil {
		return nil, err
	}

	r, err := s.open(ctx, bucket, object)
	if err != nil {
		return nil, wrapError(sourceRef, err)
	}
	defer r.Close()

	data, err := io.ReadAll(io.LimitReader(r, MaxObjectSize+1))
	if err != nil {
		return nil, wrapError(sourceRef, err)
	}
	if len(data) > MaxObjectSize {
		return nil, domain.NewValidationError("sourceRef", fmt.Sprintf("exceeds %d bytes", MaxObjectSize))
	}
	return data, nil
}

// Close releases the storage client.
func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// ParseRef splits gs://bucket/object into its parts.
func ParseRef(ref, defaultBucket string) (bucket, object string, err error) {
	rest, hasScheme := strings.CutPrefix(ref, "gs://")
	if hasScheme {
		bucket, object, _ = strings.Cut(rest, "/")
	} else {
		object = ref
	}
	if bucket == "" {
		bucket = defaultBucket
	}
	object = strings.TrimPrefix(object, "/")

	if bucket == "" {
		return "", "", domain.NewValidationError("sourceRef", "has no bucket")
	}
	if object == "" {
		return "", "", domain.NewValidationError("sourceRef", "has no object name")
	}
	return bucket, object, nil
}

// wrapError maps storage failures onto domain errors.
func wrapError(ref string, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, ref)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: reading %s: %w", domain.ErrTimeout, ref, err)
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", domain.ErrNotFound, ref)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s: %w", domain.ErrForbidden, ref, err)
		}
	}
	return domain.NewProviderError("gcs", "read", err)
}
