package driven

import "context"

// BlobStore reads document bytes. The core never writes blobs.
type BlobStore interface {
	// Fetch returns the bytes referenced by sourceRef.
	// Returns domain.ErrNotFound when the blob does not exist.
	Fetch(ctx context.Context, sourceRef string) ([]byte, error)
}
