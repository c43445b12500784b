// Package github reads document blobs from GitHub repositories.
// References take the form github://<owner>/<repo>/blob/<ref>/<path>, or
// github://<owner>/<repo>/<path> for the default branch.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.BlobStore = (*Store)(nil)

const (
	// DefaultTimeout bounds a single API request.
	DefaultTimeout = 30 * time.Second

	// DefaultRequestsPerSecond keeps well inside the authenticated limit (5000/hour).
	DefaultRequestsPerSecond = 1.2

	// MaxFileSize bounds fetched content (64MB).
	MaxFileSize = 64 * 1024 * 1024
)

// Config configures the GitHub blob store.
type Config struct {
	// Token authenticates requests. Empty means anonymous access.
	Token string

	// BaseURL overrides the API endpoint, e.g. for GitHub Enterprise or tests.
	BaseURL string

	// RequestsPerSecond throttles API calls (default: 1.2).
	RequestsPerSecond float64
}

// Ref is a parsed github:// reference.
type Ref struct {
	Owner string
	Repo  string
	Ref   string
	Path  string
}

// Store fetches repository files.
type Store struct {
	client  *gh.Client
	limiter *rate.Limiter
}

// NewStore creates a GitHub-backed store.
func NewStore(cfg Config) (*Store, error) {
	httpClient := &http.Client{Timeout: DefaultTimeout}
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		httpClient = oauth2.NewClient(context.Background(), ts)
		httpClient.Timeout = DefaultTimeout
	}
	client := gh.NewClient(httpClient)

	if cfg.BaseURL != "" {
		base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, domain.NewValidationError("baseURL", err.Error())
		}
		client.BaseURL = base
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}

	return &Store{client: client, limiter: rate.NewLimiter(rate.Limit(rps), 1)}, nil
}

// Fetch returns the content of the repository file in sourceRef.
func (s *Store) Fetch(ctx context.Context, sourceRef string) ([]byte, error) {
	ref, err := ParseRef(sourceRef)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	var opts *gh.RepositoryContentGetOptions
	if ref.Ref != "" {
		opts = &gh.RepositoryContentGetOptions{Ref: ref.Ref}
	}
	file, _, _, err := s.client.Repositories.GetContents(ctx, ref.Owner, ref.Repo, ref.Path, opts)
	if err != nil {
		return nil, wrap(sourceRef, err)
	}
	if file == nil || file.GetType() != "file" {
		return nil, domain.NewValidationError("sourceRef", "does not point to a file")
	}
	if file.GetSize() > MaxFileSize {
		return nil, domain.NewValidationError("sourceRef", fmt.Sprintf("exceeds %d bytes", MaxFileSize))
	}

	// The contents API omits bodies over 1MB; those come from the blob API.
	if file.GetEncoding() == "none" || (file.Content == nil && file.GetSize() > 0) {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		logger.Debug("Fetching github blob %s for %s", file.GetSHA(), sourceRef)
		data, _, err := s.client.Git.GetBlobRaw(ctx, ref.Owner, ref.Repo, file.GetSHA())
		if err != nil {
			return nil, wrap(sourceRef, err)
		}
		return data, nil
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, domain.NewProviderError("github", "decode", err)
	}
	return []byte(content), nil
}

// ParseRef splits a github:// reference into its parts.
func ParseRef(sourceRef string) (Ref, error) {
	rest, ok := strings.CutPrefix(sourceRef, "github://")
	if !ok {
		return Ref{}, domain.NewValidationError("sourceRef", "is not a github:// reference")
	}

	parts := strings.SplitN(rest, "/", 3)
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return Ref{}, domain.NewValidationError("sourceRef", "must name an owner, a repository and a path")
	}
	ref := Ref{Owner: parts[0], Repo: parts[1], Path: parts[2]}

	if after, ok := strings.CutPrefix(ref.Path, "blob/"); ok {
		branch, path, found := strings.Cut(after, "/")
		if !found || branch == "" || path == "" {
			return Ref{}, domain.NewValidationError("sourceRef", "must name a ref and a path after blob/")
		}
		ref.Ref, ref.Path = branch, path
	}
	return ref, nil
}

// wrap maps GitHub failures onto domain errors.
func wrap(ref string, err error) error {
	var rateErr *gh.RateLimitError
	var abuseErr *gh.AbuseRateLimitError
	var respErr *gh.ErrorResponse

	switch {
	case errors.As(err, &rateErr), errors.As(err, &abuseErr):
		return domain.NewProviderError("github", "read", err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s: %w", domain.ErrTimeout, ref, err)
	case errors.As(err, &respErr) && respErr.Response != nil:
		switch respErr.Response.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", domain.ErrNotFound, ref)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s: %w", domain.ErrForbidden, ref, err)
		}
	}
	return domain.NewProviderError("github", "read", err)
}
