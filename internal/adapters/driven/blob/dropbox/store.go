// Package dropbox reads document blobs from Dropbox.
// References take the form dropbox://files/id:<fileID> or
// dropbox://files/<path>.
package dropbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	sdk "github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.BlobStore = (*Store)(nil)

const (
	// DefaultTimeout bounds a single download.
	DefaultTimeout = 60 * time.Second

	// MaxFileSize bounds downloaded content (64MB).
	MaxFileSize = 64 * 1024 * 1024
)

// Config configures the Dropbox blob store.
type Config struct {
	// Token is the OAuth access token (required).
	Token string

	// URLGenerator overrides endpoint URLs, e.g. in tests.
	URLGenerator func(hostType, namespace, route string) string
}

// Store fetches Dropbox files.
type Store struct {
	client files.Client
}

// NewStore creates a Dropbox-backed store.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Token == "" {
		return nil, domain.NewValidationError("token", "is required for the dropbox blob store")
	}
	client := files.New(sdk.Config{
		Token:        cfg.Token,
		LogLevel:     sdk.LogOff,
		Client:       &http.Client{Timeout: DefaultTimeout},
		URLGenerator: cfg.URLGenerator,
	})
	return &Store{client: client}, nil
}

// Fetch returns the content of the Dropbox file in sourceRef.
// The SDK takes no context, so cancellation is only checked before the call.
func (s *Store) Fetch(ctx context.Context, sourceRef string) ([]byte, error) {
	path, err := ParseRef(sourceRef)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	meta, body, err := s.client.Download(files.NewDownloadArg(path))
	if err != nil {
		return nil, wrap(sourceRef, err)
	}
	defer body.Close()

	if meta != nil {
		logger.Debug("Fetching dropbox file %s (%d bytes)", meta.PathDisplay, meta.Size)
		if meta.Size > MaxFileSize {
			return nil, domain.NewValidationError("sourceRef", fmt.Sprintf("exceeds %d bytes", MaxFileSize))
		}
	}

	data, err := io.ReadAll(io.LimitReader(body, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", sourceRef, err)
	}
	if len(data) > MaxFileSize {
		return nil, domain.NewValidationError("sourceRef", fmt.Sprintf("exceeds %d bytes", MaxFileSize))
	}
	return data, nil
}

// ParseRef converts a dropbox:// reference into the path argument the API
// expects: either "id:<fileID>" or an absolute path.
func ParseRef(ref string) (string, error) {
	rest, ok := strings.CutPrefix(ref, "dropbox://")
	if !ok {
		return "", domain.NewValidationError("sourceRef", "is not a dropbox:// reference")
	}
	rest = strings.TrimPrefix(rest, "files/")
	if rest == "" || rest == "id:" {
		return "", domain.NewValidationError("sourceRef", "has no file ID or path")
	}
	if strings.HasPrefix(rest, "id:") {
		return rest, nil
	}
	return "/" + strings.TrimPrefix(rest, "/"), nil
}

// wrap maps Dropbox failures onto domain errors.
func wrap(ref string, err error) error {
	var apiErr files.DownloadAPIError
	if errors.As(err, &apiErr) && apiErr.EndpointError != nil && apiErr.EndpointError.Path != nil {
		if apiErr.EndpointError.Path.Tag == files.LookupErrorNotFound {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, ref)
		}
		if apiErr.EndpointError.Path.Tag == files.LookupErrorRestrictedContent {
			return fmt.Errorf("%w: %s: %w", domain.ErrForbidden, ref, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", domain.ErrTimeout, ref, err)
	}
	return domain.NewProviderError("dropbox", "read", err)
}
