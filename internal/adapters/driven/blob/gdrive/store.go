// Package gdrive reads document blobs from Google Drive.
// References take the form gdrive://files/<fileID>. Google Docs and Slides
// are exported as plain text, Sheets as CSV.
package gdrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.BlobStore = (*Store)(nil)

// Google Workspace MIME types that must be exported.
const (
	MimeTypeGoogleDoc    = "application/vnd.google-apps.document"
	MimeTypeGoogleSheet  = "application/vnd.google-apps.spreadsheet"
	MimeTypeGoogleSlides = "application/vnd.google-apps.presentation"
	MimeTypeFolder       = "application/vnd.google-apps.folder"
)

// Export formats for Google Workspace files.
const (
	ExportMimeText = "text/plain"
	ExportMimeCSV  = "text/csv"
)

// MaxFileSize bounds downloaded and exported content (64MB).
const MaxFileSize = 64 * 1024 * 1024

// Config configures the Drive blob store.
type Config struct {
	// AccessToken authenticates requests when set; otherwise
	// Application Default Credentials are used.
	AccessToken string

	// RequestsPerSecond throttles Drive calls (default: 8).
	RequestsPerSecond float64

	// Options are extra client options, e.g. option.WithEndpoint in tests.
	Options []option.ClientOption
}

// Store fetches Drive files.
type Store struct {
	svc     *drive.Service
	limiter *RateLimiter
}

// NewStore creates a Drive-backed store.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	opts := cfg.Options
	if cfg.AccessToken != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken})
		opts = append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)
	}

	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating drive service: %w", err)
	}

	return &Store{svc: svc, limiter: NewRateLimiter(cfg.RequestsPerSecond)}, nil
}

// Fetch returns the content of the Drive file in sourceRef.
func (s *Store) Fetch(ctx context.Context, sourceRef string) ([]byte, error) {
	fileID, err := ParseRef(sourceRef)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	file, err := s.svc.Files.Get(fileID).
		Fields("id", "name", "mimeType", "trashed").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, s.wrap(sourceRef, err)
	}
	if file.Trashed {
		return nil, fmt.Errorf("%w: %s is trashed", domain.ErrNotFound, sourceRef)
	}
	if file.MimeType == MimeTypeFolder {
		return nil, domain.NewValidationError("sourceRef", "points to a folder")
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	logger.Debug("Fetching drive file %s (%s)", file.Name, file.MimeType)

	var body io.ReadCloser
	if exportMime := ExportFormat(file.MimeType); exportMime != "" {
		resp, err := s.svc.Files.Export(fileID, exportMime).Context(ctx).Download()
		if err != nil {
			return nil, s.wrap(sourceRef, fmt.Errorf("export file: %w", err))
		}
		body = resp.Body
	} else {
		resp, err := s.svc.Files.Get(fileID).SupportsAllDrives(true).Context(ctx).Download()
		if err != nil {
			return nil, s.wrap(sourceRef, fmt.Errorf("download file: %w", err))
		}
		body = resp.Body
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", sourceRef, err)
	}
	if len(data) > MaxFileSize {
		return nil, domain.NewValidationError("sourceRef", fmt.Sprintf("exceeds %d bytes", MaxFileSize))
	}
	return data, nil
}

// wrap maps Drive failures onto domain errors and backs off after a 429.
func (s *Store) wrap(ref string, err error) error {
	if IsRateLimited(err) {
		s.limiter.RecordRateLimitError(0)
	}
	switch {
	case IsNotFound(err):
		return fmt.Errorf("%w: %s", domain.ErrNotFound, ref)
	case IsForbidden(err), IsUnauthorized(err):
		return fmt.Errorf("%w: %s: %w", domain.ErrForbidden, ref, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s: %w", domain.ErrTimeout, ref, err)
	default:
		return domain.NewProviderError("gdrive", "read", err)
	}
}

// ParseRef extracts the file ID from gdrive://files/<id>.
func ParseRef(ref string) (string, error) {
	rest, ok := strings.CutPrefix(ref, "gdrive://")
	if !ok {
		return "", domain.NewValidationError("sourceRef", "is not a gdrive:// reference")
	}
	rest = strings.TrimPrefix(rest, "files/")
	if rest == "" || strings.Contains(rest, "/") {
		return "", domain.NewValidationError("sourceRef", "has no file ID")
	}
	return rest, nil
}

// ExportFormat returns the export MIME type for Workspace files, or "" for
// files that are downloaded as-is.
func ExportFormat(mimeType string) string {
	switch mimeType {
	case MimeTypeGoogleDoc, MimeTypeGoogleSlides:
		return ExportMimeText
	case MimeTypeGoogleSheet:
		return ExportMimeCSV
	default:
		return ""
	}
}
