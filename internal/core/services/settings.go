package services

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider    = "embedding.provider"
	keyEmbedModel       = "embedding.model"
	keyEmbedBaseURL     = "embedding.base_url"
	keyEmbedAPIKey      = "embedding.api_key"
	keyEmbedDimensions  = "embedding.dimensions"
	keyEmbedBatchSize   = "embedding.batch_size"
	keyEmbedConcurrency = "embedding.concurrency"
	keyEmbedRPS         = "embedding.requests_per_second"
	keyLLMProvider      = "llm.provider"
	keyLLMModel         = "llm.model"
	keyLLMBaseURL       = "llm.base_url"
	keyLLMAPIKey        = "llm.api_key"
	keyLLMTemperature   = "llm.temperature"
	keyLLMMaxTokens     = "llm.max_tokens"
	keyLLMOpenAIKey     = "llm.openai.api_key"
	keyLLMAnthropicKey  = "llm.anthropic.api_key"
	keyLLMOllamaURL     = "llm.ollama.base_url"
	keyVertexProject    = "llm.vertex.project"
	keyVertexRegion     = "llm.vertex.region"
	keyChunkSize        = "chunking.size"
	keyChunkOverlap     = "chunking.overlap"
	keySearchLimit      = "search.limit"
	keySearchThreshold  = "search.threshold"
	keySearchBoost      = "search.keyword_boost"
	keySearchMode       = "search.mode"
	keyWorkers          = "processing.workers"
	keyTimeoutSeconds   = "processing.timeout_seconds"
	keyDataDir          = "storage.data_dir"
	keyStorageBackend   = "storage.backend"
	keyBlobBackend      = "blob.backend"
	keyBlobRoot         = "blob.root"
	keyBlobBucket       = "blob.bucket"
	keyDriveToken       = "blob.drive_token"
	keyGitHubToken      = "blob.github_token"
	keyDropboxToken     = "blob.dropbox_token"
	keyMetadataBackend  = "metadata.backend"
	keyMetadataProject  = "metadata.project"
	keyServerAddr       = "server.addr"
)

type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindFloat
)

// settingKinds lists every key Set accepts and how its value is parsed.
var settingKinds = map[string]valueKind{
	keyEmbedProvider: kindString, keyEmbedModel: kindString, keyEmbedBaseURL: kindString,
	keyEmbedAPIKey: kindString, keyEmbedDimensions: kindInt, keyEmbedBatchSize: kindInt,
	keyEmbedConcurrency: kindInt, keyEmbedRPS: kindFloat,
	keyLLMProvider: kindString, keyLLMModel: kindString, keyLLMBaseURL: kindString,
	keyLLMAPIKey: kindString, keyLLMTemperature: kindFloat, keyLLMMaxTokens: kindInt,
	keyLLMOpenAIKey: kindString, keyLLMAnthropicKey: kindString, keyLLMOllamaURL: kindString,
	keyVertexProject: kindString, keyVertexRegion: kindString,
	keyChunkSize: kindInt, keyChunkOverlap: kindInt,
	keySearchLimit: kindInt, keySearchThreshold: kindFloat, keySearchBoost: kindFloat, keySearchMode: kindString,
	keyWorkers: kindInt, keyTimeoutSeconds: kindInt,
	keyDataDir: kindString, keyStorageBackend: kindString,
	keyBlobBackend: kindString, keyBlobRoot: kindString, keyBlobBucket: kindString,
	keyDriveToken: kindString, keyGitHubToken: kindString, keyDropboxToken: kindString,
	keyMetadataBackend: kindString, keyMetadataProject: kindString,
	keyServerAddr: kindString,
}

// SettingKeys returns every key accepted by Set, sorted.
func SettingKeys() []string {
	keys := make([]string, 0, len(settingKinds))
	for k := range settingKinds {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider:          s.getProvider(keyEmbedProvider, defaults.Embedding.Provider),
			Model:             s.getString(keyEmbedModel, defaults.Embedding.Model),
			BaseURL:           s.configStore.GetString(keyEmbedBaseURL), // No default - empty is valid for cloud providers
			APIKey:            s.configStore.GetString(keyEmbedAPIKey),
			Dimensions:        s.getInt(keyEmbedDimensions, defaults.Embedding.Dimensions),
			BatchSize:         s.getInt(keyEmbedBatchSize, defaults.Embedding.BatchSize),
			Concurrency:       s.getInt(keyEmbedConcurrency, defaults.Embedding.Concurrency),
			RequestsPerSecond: s.getFloat(keyEmbedRPS, defaults.Embedding.RequestsPerSecond),
		},
		LLM: domain.LLMSettings{
			Provider:    s.getProvider(keyLLMProvider, defaults.LLM.Provider),
			Model:       s.getString(keyLLMModel, defaults.LLM.Model),
			BaseURL:     s.configStore.GetString(keyLLMBaseURL),
			APIKey:      s.configStore.GetString(keyLLMAPIKey),
			Temperature: s.getFloat(keyLLMTemperature, defaults.LLM.Temperature),
			MaxTokens:   s.getInt(keyLLMMaxTokens, defaults.LLM.MaxTokens),
			Providers:   map[domain.AIProvider]domain.ProviderCredentials{},
			Vertex: domain.VertexSettings{
				Project: s.configStore.GetString(keyVertexProject),
				Region:  s.getString(keyVertexRegion, defaults.LLM.Vertex.Region),
			},
		},
		Chunking: domain.ChunkingSettings{
			Size:    s.getInt(keyChunkSize, defaults.Chunking.Size),
			Overlap: s.getInt(keyChunkOverlap, defaults.Chunking.Overlap),
		},
		Search: domain.SearchSettings{
			Limit:        s.getInt(keySearchLimit, defaults.Search.Limit),
			Threshold:    s.getFloat(keySearchThreshold, defaults.Search.Threshold),
			KeywordBoost: s.getFloat(keySearchBoost, defaults.Search.KeywordBoost),
			Mode:         s.getRetrievalMode(defaults.Search.Mode),
		},
		Processing: domain.ProcessingSettings{
			Workers: s.getInt(keyWorkers, defaults.Processing.Workers),
			Timeout: time.Duration(s.getInt(keyTimeoutSeconds, int(defaults.Processing.Timeout/time.Second))) * time.Second,
		},
		Storage: domain.StorageSettings{
			DataDir: s.getString(keyDataDir, defaults.Storage.DataDir),
			Backend: s.getString(keyStorageBackend, defaults.Storage.Backend),
		},
		Blob: domain.BlobSettings{
			Backend:      s.getString(keyBlobBackend, defaults.Blob.Backend),
			Root:         s.configStore.GetString(keyBlobRoot),
			Bucket:       s.configStore.GetString(keyBlobBucket),
			DriveToken:   s.configStore.GetString(keyDriveToken),
			GitHubToken:  s.configStore.GetString(keyGitHubToken),
			DropboxToken: s.configStore.GetString(keyDropboxToken),
		},
		Metadata: domain.MetadataSettings{
			Backend: s.getString(keyMetadataBackend, defaults.Metadata.Backend),
			Project: s.configStore.GetString(keyMetadataProject),
		},
		Server: domain.ServerSettings{
			Addr: s.getString(keyServerAddr, defaults.Server.Addr),
		},
	}

	if key := s.configStore.GetString(keyLLMOpenAIKey); key != "" {
		settings.LLM.Providers[domain.AIProviderOpenAI] = domain.ProviderCredentials{APIKey: key}
	}
	if key := s.configStore.GetString(keyLLMAnthropicKey); key != "" {
		settings.LLM.Providers[domain.AIProviderAnthropic] = domain.ProviderCredentials{APIKey: key}
	}
	if url := s.configStore.GetString(keyLLMOllamaURL); url != "" {
		settings.LLM.Providers[domain.AIProviderOllama] = domain.ProviderCredentials{BaseURL: url}
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedDimensions, settings.Embedding.Dimensions},
		{keyEmbedBatchSize, settings.Embedding.BatchSize},
		{keyEmbedConcurrency, settings.Embedding.Concurrency},
		{keyEmbedRPS, settings.Embedding.RequestsPerSecond},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyLLMTemperature, settings.LLM.Temperature},
		{keyLLMMaxTokens, settings.LLM.MaxTokens},
		{keyVertexProject, settings.LLM.Vertex.Project},
		{keyVertexRegion, settings.LLM.Vertex.Region},
		{keyChunkSize, settings.Chunking.Size},
		{keyChunkOverlap, settings.Chunking.Overlap},
		{keySearchLimit, settings.Search.Limit},
		{keySearchThreshold, settings.Search.Threshold},
		{keySearchBoost, settings.Search.KeywordBoost},
		{keySearchMode, settings.Search.Mode.String()},
		{keyWorkers, settings.Processing.Workers},
		{keyTimeoutSeconds, int(settings.Processing.Timeout / time.Second)},
		{keyDataDir, settings.Storage.DataDir},
		{keyStorageBackend, settings.Storage.Backend},
		{keyBlobBackend, settings.Blob.Backend},
		{keyBlobRoot, settings.Blob.Root},
		{keyBlobBucket, settings.Blob.Bucket},
		{keyDriveToken, settings.Blob.DriveToken},
		{keyGitHubToken, settings.Blob.GitHubToken},
		{keyDropboxToken, settings.Blob.DropboxToken},
		{keyMetadataBackend, settings.Metadata.Backend},
		{keyMetadataProject, settings.Metadata.Project},
		{keyServerAddr, settings.Server.Addr},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	// API keys are only written when present so a save never clears them.
	secrets := []struct{ key, value string }{
		{keyEmbedAPIKey, settings.Embedding.APIKey},
		{keyLLMAPIKey, settings.LLM.APIKey},
		{keyLLMOpenAIKey, settings.LLM.Providers[domain.AIProviderOpenAI].APIKey},
		{keyLLMAnthropicKey, settings.LLM.Providers[domain.AIProviderAnthropic].APIKey},
		{keyLLMOllamaURL, settings.LLM.Providers[domain.AIProviderOllama].BaseURL},
	}
	for _, v := range secrets {
		if v.value == "" {
			continue
		}
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	return nil
}

// Set updates a single setting by its config key, parsing the value for the key's type.
func (s *SettingsService) Set(key, value string) error {
	kind, ok := settingKinds[key]
	if !ok {
		return domain.NewValidationError(key, "is not a known setting")
	}

	var parsed any
	switch kind {
	case kindInt:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return domain.NewValidationError(key, "must be an integer")
		}
		if n < 0 {
			return domain.NewValidationError(key, "must not be negative")
		}
		parsed = n
	case kindFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return domain.NewValidationError(key, "must be a number")
		}
		if f < 0 {
			return domain.NewValidationError(key, "must not be negative")
		}
		parsed = f
	default:
		parsed = value
	}

	switch key {
	case keyEmbedProvider, keyLLMProvider:
		if !domain.AIProvider(value).IsValid() {
			return domain.NewValidationError(key, fmt.Sprintf("unknown provider %q", value))
		}
	case keySearchMode:
		if !domain.RetrievalMode(value).IsValid() {
			return domain.NewValidationError(key, fmt.Sprintf("unknown retrieval mode %q", value))
		}
	case keySearchThreshold:
		if parsed.(float64) > 1 {
			return domain.NewValidationError(key, "must be between 0 and 1")
		}
	}

	if err := s.configStore.Set(key, parsed); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid embedding provider: %s", provider)
	}
	if !slices.Contains(domain.AllEmbeddingProviders(), provider) {
		return fmt.Errorf("provider %s does not support embeddings", provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider
	if model != "" {
		settings.Embedding.Model = model
	} else if defaultModel, ok := domain.DefaultEmbeddingModels()[provider]; ok {
		settings.Embedding.Model = defaultModel
	}

	if provider.IsLocal() {
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = "http://localhost:11434"
		}
	} else {
		settings.Embedding.BaseURL = ""
	}
	settings.Embedding.APIKey = apiKey

	// Vector size follows the model
	if d, ok := domain.EmbeddingDimensions()[settings.Embedding.Model]; ok {
		settings.Embedding.Dimensions = d
	}

	return s.Save(settings)
}

// SetLLMProvider configures the default answer-generation provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid LLM provider: %s", provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.LLM.Provider = provider
	if model != "" {
		settings.LLM.Model = model
	} else if defaultModel, ok := domain.DefaultLLMModels()[provider]; ok {
		settings.LLM.Model = defaultModel
	}

	if provider.IsLocal() {
		if settings.LLM.BaseURL == "" {
			settings.LLM.BaseURL = "http://localhost:11434"
		}
	} else {
		settings.LLM.BaseURL = ""
	}
	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// Validate checks that current settings are coherent.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	var errs []error
	if settings.Chunking.Size <= 0 {
		errs = append(errs, domain.NewValidationError(keyChunkSize, "must be positive"))
	}
	if settings.Chunking.Overlap >= settings.Chunking.Size {
		errs = append(errs, domain.NewValidationError(keyChunkOverlap, "must be smaller than chunking.size"))
	}
	if settings.Search.Threshold < 0 || settings.Search.Threshold > 1 {
		errs = append(errs, domain.NewValidationError(keySearchThreshold, "must be between 0 and 1"))
	}
	if settings.Search.Mode.RequiresEmbedding() && !settings.Embedding.IsConfigured() {
		errs = append(errs, fmt.Errorf(
			"retrieval mode %q requires embedding provider to be configured",
			settings.Search.Mode.Description(),
		))
	}
	if settings.Processing.Workers <= 0 {
		errs = append(errs, domain.NewValidationError(keyWorkers, "must be positive"))
	}
	return errors.Join(errs...)
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getRetrievalMode(defaultVal domain.RetrievalMode) domain.RetrievalMode {
	mode := domain.RetrievalMode(s.configStore.GetString(keySearchMode))
	if !mode.IsValid() {
		return defaultVal
	}
	return mode
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	provider := domain.AIProvider(s.configStore.GetString(key))
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}
