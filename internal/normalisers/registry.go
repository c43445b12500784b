package normalisers

import (
	"context"
	"fmt"
	"mime"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure Registry implements the interface.
var _ driven.NormaliserRegistry = (*Registry)(nil)

// Registry dispatches documents to the highest priority normaliser for their MIME type.
// Documents with unknown or unparseable MIME types go to the fallback normaliser,
// so extraction never fails on type alone.
type Registry struct {
	mu          sync.RWMutex
	byMIME      map[string][]driven.Normaliser
	fallback    driven.Normaliser
	normalisers []driven.Normaliser
}

// NewRegistry creates a registry. fallback handles unknown MIME types and
// is usually the plain text normaliser.
func NewRegistry(fallback driven.Normaliser, normalisers ...driven.Normaliser) *Registry {
	r := &Registry{
		byMIME:   make(map[string][]driven.Normaliser),
		fallback: fallback,
	}
	if fallback != nil {
		r.Register(fallback)
	}
	for _, n := range normalisers {
		r.Register(n)
	}
	return r
}

// Register adds a normaliser to the registry.
func (r *Registry) Register(n driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.normalisers = append(r.normalisers, n)
	for _, mt := range n.SupportedMIMETypes() {
		list := append(r.byMIME[mt], n)
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Priority() > list[j].Priority()
		})
		r.byMIME[mt] = list
	}
}

// Normalise extracts text using the best matching normaliser.
func (r *Registry) Normalise(ctx context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	n := r.lookup(raw.MIMEType)
	if n == nil {
		return nil, fmt.Errorf("no normaliser for %q: %w", raw.MIMEType, domain.ErrUnsupportedType)
	}

	result, err := n.Normalise(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("normalise %s: %w", raw.MIMEType, err)
	}
	return result, nil
}

func (r *Registry) lookup(mimeType string) driven.Normaliser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		mt = parsed
	}
	if list := r.byMIME[mt]; len(list) > 0 {
		return list[0]
	}

	logger.Debug("No normaliser for MIME type %q, using plain text fallback", mimeType)
	return r.fallback
}

// SupportedMIMETypes returns all MIME types that can be normalised.
func (r *Registry) SupportedMIMETypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.byMIME))
	for mt := range r.byMIME {
		types = append(types, mt)
	}
	sort.Strings(types)
	return types
}
