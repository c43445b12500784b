package services

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure BatchEmbedder implements the interface.
var _ driven.EmbeddingService = (*BatchEmbedder)(nil)

// BatchEmbedderConfig bounds how a BatchEmbedder talks to its provider.
type BatchEmbedderConfig struct {
	// BatchSize is the maximum number of texts per provider request.
	BatchSize int

	// Concurrency bounds parallel sub-batch requests.
	Concurrency int

	// RequestsPerSecond throttles provider requests. Zero disables throttling.
	RequestsPerSecond float64

	// Provider names the backend in ProviderError values.
	Provider string
}

// BatchEmbedder wraps an embedding provider, splitting large inputs into
// sub-batches that run concurrently under a rate limit. Output order always
// matches input order regardless of which sub-batch finishes first.
type BatchEmbedder struct {
	inner   driven.EmbeddingService
	cfg     BatchEmbedderConfig
	limiter *rate.Limiter
}

// NewBatchEmbedder creates a BatchEmbedder around inner.
func NewBatchEmbedder(inner driven.EmbeddingService, cfg BatchEmbedderConfig) *BatchEmbedder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Provider == "" {
		cfg.Provider = "embedding"
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &BatchEmbedder{inner: inner, cfg: cfg, limiter: limiter}
}

// Embed generates a vector embedding for a single text.
func (b *BatchEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := b.wait(ctx); err != nil {
		return nil, err
	}
	vec, err := b.inner.Embed(ctx, text)
	if err != nil {
		return nil, b.providerError(err)
	}
	if err := b.checkDimensions(vec); err != nil {
		return nil, b.providerError(err)
	}
	return vec, nil
}

// EmbedBatch generates embeddings for texts, returning exactly one vector per
// text in input order. Any sub-batch failure fails the whole call.
func (b *BatchEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Concurrency)

	batches := 0
	for start := 0; start < len(texts); start += b.cfg.BatchSize {
		end := min(start+b.cfg.BatchSize, len(texts))
		batches++

		g.Go(func() error {
			if err := b.wait(gctx); err != nil {
				return err
			}
			vecs, err := b.inner.EmbedBatch(gctx, texts[start:end])
			if err != nil {
				return err
			}
			if len(vecs) != end-start {
				return fmt.Errorf("sub-batch %d..%d: got %d embeddings for %d texts",
					start, end, len(vecs), end-start)
			}
			for i, v := range vecs {
				if err := b.checkDimensions(v); err != nil {
					return fmt.Errorf("text %d: %w", start+i, err)
				}
				out[start+i] = v
			}
			return nil
		})
	}

	logger.Debug("Embedding %d texts in %d sub-batches (concurrency %d)", len(texts), batches, b.cfg.Concurrency)

	if err := g.Wait(); err != nil {
		return nil, b.providerError(err)
	}
	return out, nil
}

// Dimensions returns the embedding vector size.
func (b *BatchEmbedder) Dimensions() int {
	return b.inner.Dimensions()
}

// ModelName returns the name of the embedding model being used.
func (b *BatchEmbedder) ModelName() string {
	return b.inner.ModelName()
}

// Ping validates the provider is reachable.
func (b *BatchEmbedder) Ping(ctx context.Context) error {
	return b.inner.Ping(ctx)
}

// Close releases resources.
func (b *BatchEmbedder) Close() error {
	return b.inner.Close()
}

func (b *BatchEmbedder) wait(ctx context.Context) error {
	if b.limiter == nil {
		return nil
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

func (b *BatchEmbedder) checkDimensions(vec []float32) error {
	if len(vec) == 0 {
		return errors.New("empty embedding")
	}
	if dims := b.inner.Dimensions(); dims > 0 && len(vec) != dims {
		return fmt.Errorf("embedding has %d dimensions, expected %d", len(vec), dims)
	}
	return nil
}

// providerError wraps err as a ProviderError unless it already is one.
func (b *BatchEmbedder) providerError(err error) error {
	var pe *domain.ProviderError
	if errors.As(err, &pe) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	}
	return domain.NewProviderError(b.cfg.Provider, "embed", err)
}
