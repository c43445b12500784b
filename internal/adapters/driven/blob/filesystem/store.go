// Package filesystem reads document blobs from a local directory and
// watches it for changes.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.BlobStore = (*Store)(nil)

// MaxBlobSize bounds a single read (64MB).
const MaxBlobSize = 64 * 1024 * 1024

// Store reads blobs below a root directory. References are paths relative
// to the root or file:// URIs pointing inside it; anything escaping the
// root is rejected with domain.ErrForbidden.
type Store struct {
	root string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, domain.NewValidationError("root", "is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving blob root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("opening blob root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("blob root %s is not a directory", abs)
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute root directory.
func (s *Store) Root() string {
	return s.root
}

// Fetch reads the file referenced by sourceRef.
func (s *Store) Fetch(ctx context.Context, sourceRef string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rel, err := s.Rel(sourceRef)
	if err != nil {
		return nil, err
	}

	// os.Root refuses symlinks that leave the directory.
	root, err := os.OpenRoot(s.root)
	if err != nil {
		return nil, fmt.Errorf("opening blob root: %w", err)
	}
	defer root.Close()

	f, err := root.Open(rel)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, sourceRef)
		}
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %s", domain.ErrForbidden, sourceRef)
		}
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrForbidden, sourceRef, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", sourceRef, err)
	}
	if info.IsDir() {
		return nil, domain.NewValidationError("sourceRef", "points to a directory")
	}

	data, err := io.ReadAll(io.LimitReader(f, MaxBlobSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", sourceRef, err)
	}
	if len(data) > MaxBlobSize {
		return nil, domain.NewValidationError("sourceRef", fmt.Sprintf("exceeds %d bytes", MaxBlobSize))
	}
	return data, nil
}

// Rel converts a reference to a slash-separated path relative to the root.
func (s *Store) Rel(sourceRef string) (string, error) {
	path := strings.TrimPrefix(sourceRef, "file://")
	if filepath.IsAbs(path) {
		rel, err := filepath.Rel(s.root, filepath.Clean(path))
		if err != nil {
			return "", fmt.Errorf("%w: %s is outside the blob root", domain.ErrForbidden, sourceRef)
		}
		path = rel
	}
	path = filepath.Clean(filepath.FromSlash(path))
	if !filepath.IsLocal(path) {
		return "", fmt.Errorf("%w: %s is outside the blob root", domain.ErrForbidden, sourceRef)
	}
	return filepath.ToSlash(path), nil
}
