package services

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/normalisers"
	"github.com/custodia-labs/sercha-rag/internal/normalisers/plaintext"
	"github.com/custodia-labs/sercha-rag/internal/postprocessors/chunker"
)

const testDims = 16

// mockEmbedder produces bag-of-words vectors so related texts have high cosine similarity.
type mockEmbedder struct {
	mu         sync.Mutex
	dims       int
	err        error
	failOn     string
	wrongDimAt int
	delay      time.Duration
	batchSizes []int
	calls      atomic.Int32
}

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{dims: testDims, wrongDimAt: -1}
}

func (m *mockEmbedder) vector(text string) []float32 {
	vec := make([]float32, m.dims)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(strings.Trim(w, ".,!?")))
		vec[h.Sum32()%uint32(m.dims)]++
	}
	return vec
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return m.vector(text), nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.batchSizes = append(m.batchSizes, len(texts))
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if m.failOn != "" && strings.Contains(t, m.failOn) {
			return nil, errors.New("provider rejected input")
		}
		out[i] = m.vector(t)
		if i == m.wrongDimAt {
			out[i] = out[i][:m.dims-1]
		}
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int                { return m.dims }
func (m *mockEmbedder) ModelName() string              { return "mock-embed" }
func (m *mockEmbedder) Ping(ctx context.Context) error { return nil }
func (m *mockEmbedder) Close() error                   { return nil }

// mockBlobStore serves content from a map keyed by source reference.
type mockBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
	err   error
}

func newMockBlobStore() *mockBlobStore {
	return &mockBlobStore{blobs: make(map[string][]byte)}
}

func (m *mockBlobStore) put(ref, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[ref] = []byte(content)
}

func (m *mockBlobStore) Fetch(ctx context.Context, ref string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	b, ok := m.blobs[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return b, nil
}

// mockGenerator records what it was asked and returns a fixed answer.
type mockGenerator struct {
	mu      sync.Mutex
	answer  string
	err     error
	query   string
	context string
	params  domain.GenerateParams
	calls   int
	onCall  func()
}

func (m *mockGenerator) Generate(
	ctx context.Context, query, contextText string, params domain.GenerateParams,
) (*driven.GeneratedAnswer, error) {
	m.mu.Lock()
	m.calls++
	m.query, m.context, m.params = query, contextText, params
	m.mu.Unlock()
	if m.onCall != nil {
		m.onCall()
	}
	if m.err != nil {
		return nil, m.err
	}
	return &driven.GeneratedAnswer{Text: m.answer, Model: "mock-model"}, nil
}

// failingIndex wraps an index and fails selected operations.
type failingIndex struct {
	*memory.IndexStore
	keywordErr error
	vectorErr  error
}

func (f *failingIndex) KeywordSearch(
	ctx context.Context, projectID, query string, k int, filters domain.SearchFilters,
) ([]domain.RetrievalResult, error) {
	if f.keywordErr != nil {
		return nil, f.keywordErr
	}
	return f.IndexStore.KeywordSearch(ctx, projectID, query, k, filters)
}

func (f *failingIndex) VectorSearch(
	ctx context.Context, projectID string, vector []float32, k int, filters domain.SearchFilters,
) ([]domain.RetrievalResult, error) {
	if f.vectorErr != nil {
		return nil, f.vectorErr
	}
	return f.IndexStore.VectorSearch(ctx, projectID, vector, k, filters)
}

// pipeline bundles a processor with the in-memory collaborators it runs against.
type pipeline struct {
	docs      *memory.DocumentStore
	blobs     *mockBlobStore
	embedder  *mockEmbedder
	index     *memory.IndexStore
	processor *DocumentProcessor
}

func newPipeline(cfg ProcessorConfig) *pipeline {
	p := &pipeline{
		docs:     memory.NewDocumentStore(),
		blobs:    newMockBlobStore(),
		embedder: newMockEmbedder(),
		index:    memory.NewIndexStore(testDims),
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = 1000
	}
	p.processor = NewDocumentProcessor(
		p.docs,
		p.blobs,
		normalisers.NewRegistry(plaintext.New()),
		chunker.New(),
		p.embedder,
		p.index,
		cfg,
	)
	return p
}

func (p *pipeline) addDocument(id, project, name, content string) {
	ref := "blob://" + id
	p.blobs.put(ref, content)
	_ = p.docs.SaveDocument(context.Background(), &domain.Document{
		ID:        id,
		ProjectID: project,
		Name:      name,
		MIMEType:  "text/plain",
		SourceRef: ref,
	})
}
