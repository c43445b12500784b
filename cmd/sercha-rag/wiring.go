package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/ai"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/blob"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/blob/dropbox"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/blob/filesystem"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/blob/gcs"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/blob/gdrive"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/blob/github"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/blob/httpblob"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/docmeta/firestore"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/cli"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/services"
	"github.com/custodia-labs/sercha-rag/internal/logger"
	"github.com/custodia-labs/sercha-rag/internal/normalisers"
	"github.com/custodia-labs/sercha-rag/internal/normalisers/docx"
	"github.com/custodia-labs/sercha-rag/internal/normalisers/html"
	"github.com/custodia-labs/sercha-rag/internal/normalisers/markdown"
	"github.com/custodia-labs/sercha-rag/internal/normalisers/plaintext"
	"github.com/custodia-labs/sercha-rag/internal/postprocessors/chunker"
)

const (
	// taskBuffer is the number of queued background processing jobs.
	taskBuffer = 256

	shutdownTimeout = 10 * time.Second
)

// closers releases resources in reverse order of acquisition.
type closers []func() error

func (c *closers) add(fn func() error) {
	*c = append(*c, fn)
}

func (c closers) close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// build assembles every adapter and service from settings.
func build(ctx context.Context, opts cli.BootstrapOptions) (svc *cli.Services, closeFn func() error, err error) {
	var cleanup closers
	defer func() {
		if err != nil {
			_ = cleanup.close()
		}
	}()

	configDir, err := resolveConfigDir(opts.ConfigDir)
	if err != nil {
		return nil, nil, err
	}

	configStore, err := openConfig(configDir, opts.Ephemeral)
	if err != nil {
		return nil, nil, err
	}
	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())
	settings, err := settingsService.Get()
	if err != nil {
		return nil, nil, fmt.Errorf("loading settings: %w", err)
	}

	embedder, err := openEmbedder(ctx, settings.Embedding)
	if err != nil {
		return nil, nil, err
	}
	dims := 0
	if embedder != nil {
		cleanup.add(embedder.Close)
		dims = embedder.Dimensions()
	}

	st, err := openStorage(configDir, settings, dims, opts.Ephemeral, &cleanup)
	if err != nil {
		return nil, nil, err
	}

	if settings.Metadata.Backend == "firestore" {
		fs, err := firestore.NewStore(ctx, firestore.Config{ProjectID: settings.Metadata.Project})
		if err != nil {
			return nil, nil, fmt.Errorf("opening firestore metadata store: %w", err)
		}
		cleanup.add(fs.Close)
		st.docs = fs
	}

	blobRoot := settings.Blob.Root
	if blobRoot == "" {
		blobRoot = filepath.Join(configDir, "blobs")
	}
	blobs, err := openBlobs(ctx, blobRoot, settings.Blob, &cleanup)
	if err != nil {
		return nil, nil, err
	}

	registry := normalisers.NewRegistry(plaintext.New(), markdown.New(), html.New(), docx.New())
	splitter := chunker.New(
		chunker.WithChunkSize(settings.Chunking.Size),
		chunker.WithOverlap(settings.Chunking.Overlap),
	)

	processor := services.NewDocumentProcessor(st.docs, blobs, registry, splitter, embedder, st.index, services.ProcessorConfig{
		ChunkSize:    settings.Chunking.Size,
		ChunkOverlap: settings.Chunking.Overlap,
		Workers:      settings.Processing.Workers,
		Timeout:      settings.Processing.Timeout,
	})

	search := services.NewSearchService(st.index, embedder, st.queryIndex, services.SearchConfig{
		DefaultLimit:     settings.Search.Limit,
		DefaultThreshold: settings.Search.Threshold,
		KeywordBoost:     settings.Search.KeywordBoost,
		DefaultMode:      settings.Search.Mode,
	})

	prompts, err := file.NewPromptStore(filepath.Join(configDir, "prompts"))
	if err != nil {
		return nil, nil, err
	}
	answers := ai.NewAnswerRouter(settings.LLM, prompts)
	cleanup.add(answers.Close)

	defaults := domain.DefaultQueryOptions()
	defaults.Limit = settings.Search.Limit
	defaults.Threshold = &settings.Search.Threshold
	defaults.Mode = settings.Search.Mode
	defaults.Temperature = &settings.LLM.Temperature
	defaults.MaxTokens = settings.LLM.MaxTokens

	query := services.NewQueryService(st.queries, search, answers, embedder, st.queryIndex, services.QueryConfig{
		Defaults: defaults,
		Provider: settings.LLM.Provider,
		Model:    settings.LLM.Model,
	})

	tasks := services.NewTaskRunner(settings.Processing.Workers, taskBuffer)
	cleanup.add(func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return tasks.Shutdown(shutdownCtx)
	})

	logger.Debug("services ready: storage=%s metadata=%s blobs=%s dims=%d",
		settings.Storage.Backend, settings.Metadata.Backend, settings.Blob.Backend, dims)

	return &cli.Services{
		Processor:  processor,
		Search:     search,
		Query:      query,
		Settings:   settingsService,
		Documents:  st.docs,
		Index:      st.index,
		Tasks:      tasks,
		BlobRoot:   blobRoot,
		ServerAddr: settings.Server.Addr,
	}, cleanup.close, nil
}

func resolveConfigDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".sercha-rag"), nil
}

func openConfig(configDir string, ephemeral bool) (driven.ConfigStore, error) {
	if ephemeral {
		return memory.NewConfigStore(), nil
	}
	store, err := file.NewConfigStore(configDir)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	store.ApplyEnv(os.Environ())
	return store, nil
}

// openEmbedder returns nil when no embedding provider is configured.
func openEmbedder(ctx context.Context, cfg domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if !cfg.IsConfigured() {
		logger.Debug("embedding provider not configured, indexing for keyword search only")
		return nil, nil
	}
	inner, err := ai.CreateAndValidateEmbeddingService(ctx, &cfg)
	if err != nil {
		return nil, fmt.Errorf("embedding service: %w", err)
	}
	return services.NewBatchEmbedder(inner, services.BatchEmbedderConfig{
		BatchSize:         cfg.BatchSize,
		Concurrency:       cfg.Concurrency,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Provider:          string(cfg.Provider),
	}), nil
}

type storage struct {
	docs       driven.DocumentMetadataStore
	index      driven.IndexStore
	queryIndex driven.QueryIndex
	queries    driven.QueryStore
}

func openStorage(configDir string, settings *domain.AppSettings, dims int, ephemeral bool, cleanup *closers) (*storage, error) {
	if ephemeral || settings.Storage.Backend == "memory" {
		index := memory.NewIndexStore(dims)
		return &storage{
			docs:       memory.NewDocumentStore(),
			index:      index,
			queryIndex: index,
			queries:    memory.NewQueryStore(),
		}, nil
	}

	dataDir := settings.Storage.DataDir
	if dataDir == "" {
		dataDir = filepath.Join(configDir, "data")
	}
	db, err := sqlite.NewStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite store: %w", err)
	}
	cleanup.add(db.Close)

	index := db.IndexStore(dims)
	return &storage{
		docs:       db.DocumentStore(),
		index:      index,
		queryIndex: index,
		queries:    db.QueryStore(),
	}, nil
}

// openBlobs routes references by scheme. Bare paths resolve under root.
func openBlobs(ctx context.Context, root string, cfg domain.BlobSettings, cleanup *closers) (*blob.Router, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("creating blob root: %w", err)
	}
	local, err := filesystem.NewStore(root)
	if err != nil {
		return nil, err
	}

	router := blob.NewRouter(local)
	router.Register("file", local)

	web := httpblob.NewStore(httpblob.Config{})
	router.Register("http", web)
	router.Register("https", web)

	if cfg.Backend == "gcs" || cfg.Bucket != "" {
		bucket, err := gcs.NewStore(ctx, gcs.Config{DefaultBucket: cfg.Bucket})
		if err != nil {
			return nil, fmt.Errorf("opening gcs blob store: %w", err)
		}
		cleanup.add(bucket.Close)
		router.Register("gs", bucket)
	}

	if cfg.Backend == "gdrive" {
		drive, err := gdrive.NewStore(ctx, gdrive.Config{AccessToken: cfg.DriveToken})
		if err != nil {
			return nil, fmt.Errorf("opening drive blob store: %w", err)
		}
		router.Register("gdrive", drive)
	}

	repos, err := github.NewStore(github.Config{Token: cfg.GitHubToken})
	if err != nil {
		return nil, fmt.Errorf("opening github blob store: %w", err)
	}
	router.Register("github", repos)

	if cfg.DropboxToken != "" {
		box, err := dropbox.NewStore(dropbox.Config{Token: cfg.DropboxToken})
		if err != nil {
			return nil, fmt.Errorf("opening dropbox blob store: %w", err)
		}
		router.Register("dropbox", box)
	}

	return router, nil
}
