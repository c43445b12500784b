package blob

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure Router implements the interface.
var _ driven.BlobStore = (*Router)(nil)

// Router dispatches Fetch calls to a store registered for the reference's scheme.
type Router struct {
	stores   map[string]driven.BlobStore
	fallback driven.BlobStore
}

// NewRouter creates a router. References without a registered scheme go to fallback.
func NewRouter(fallback driven.BlobStore) *Router {
	return &Router{
		stores:   make(map[string]driven.BlobStore),
		fallback: fallback,
	}
}

// Register adds a store for a scheme such as "gs" or "https".
func (r *Router) Register(scheme string, store driven.BlobStore) {
	r.stores[strings.ToLower(scheme)] = store
}

// Schemes returns the registered schemes.
func (r *Router) Schemes() []string {
	schemes := make([]string, 0, len(r.stores))
	for s := range r.stores {
		schemes = append(schemes, s)
	}
	return schemes
}

// Fetch returns the bytes referenced by sourceRef.
func (r *Router) Fetch(ctx context.Context, sourceRef string) ([]byte, error) {
	if sourceRef == "" {
		return nil, domain.NewValidationError("sourceRef", "is required")
	}

	if scheme, _, ok := strings.Cut(sourceRef, "://"); ok {
		if store, found := r.stores[strings.ToLower(scheme)]; found {
			return store.Fetch(ctx, sourceRef)
		}
		if r.fallback == nil {
			return nil, fmt.Errorf("%w: no blob store for scheme %q", domain.ErrInvalidInput, scheme)
		}
	}

	if r.fallback == nil {
		return nil, fmt.Errorf("%w: no default blob store", domain.ErrInvalidInput)
	}
	return r.fallback.Fetch(ctx, sourceRef)
}
