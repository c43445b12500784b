// Package httpblob downloads document blobs from HTTP(S) URLs, such as
// pre-signed download links issued by the document service.
package httpblob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.BlobStore = (*Store)(nil)

// Default configuration values.
const (
	DefaultTimeout = 60 * time.Second
	DefaultMaxSize = 64 * 1024 * 1024
)

// Config configures the HTTP blob store.
type Config struct {
	// Timeout bounds a single download (default: 60s).
	Timeout time.Duration

	// MaxSize bounds the body size in bytes (default: 64MB).
	MaxSize int64

	// Headers are added to every request, e.g. an Authorization header.
	Headers map[string]string
}

// Store fetches blobs with HTTP GET.
type Store struct {
	client  *http.Client
	maxSize int64
	headers map[string]string
}

// NewStore creates an HTTP blob store.
func NewStore(cfg Config) *Store {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	return &Store{
		client:  &http.Client{Timeout: cfg.Timeout},
		maxSize: cfg.MaxSize,
		headers: cfg.Headers,
	}
}

// Fetch downloads the URL in sourceRef.
func (s *Store) Fetch(ctx context.Context, sourceRef string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceRef, http.NoBody)
	if err != nil {
		return nil, domain.NewValidationError("sourceRef", fmt.Sprintf("invalid URL: %v", err))
	}
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: downloading %s: %w", domain.ErrTimeout, sourceRef, err)
		}
		return nil, fmt.Errorf("downloading %s: %w", sourceRef, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, sourceRef)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s returned %d", domain.ErrForbidden, sourceRef, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("downloading %s: unexpected status %d", sourceRef, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", sourceRef, err)
	}
	if int64(len(data)) > s.maxSize {
		return nil, domain.NewValidationError("sourceRef", fmt.Sprintf("exceeds %d bytes", s.maxSize))
	}
	return data, nil
}
