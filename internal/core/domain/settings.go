package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or answer generation.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"

	// AIProviderVertex is Google Vertex AI (Gemini).
	AIProviderVertex AIProvider = "vertex"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic, AIProviderVertex:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
// Vertex authenticates through application default credentials.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	case AIProviderVertex:
		return "Vertex AI (cloud)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Dimensions overrides the model's known vector size.
	Dimensions int

	// BatchSize is the maximum number of texts per provider request.
	BatchSize int

	// Concurrency bounds parallel sub-batch requests.
	Concurrency int

	// RequestsPerSecond throttles provider requests. Zero disables throttling.
	RequestsPerSecond float64
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderAnthropic || e.Provider == AIProviderVertex {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// ProviderCredentials holds per-provider connection details so a query can
// pick a provider other than the default.
type ProviderCredentials struct {
	APIKey  string
	BaseURL string
}

// VertexSettings locates the Vertex AI project.
type VertexSettings struct {
	Project string
	Region  string
}

// LLMSettings holds answer-generation provider configuration.
type LLMSettings struct {
	// Provider is the default provider.
	Provider AIProvider

	// Model is the default model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string

	// Temperature is the default sampling temperature.
	Temperature float64

	// MaxTokens is the default answer budget.
	MaxTokens int

	// Providers holds credentials for non-default providers, keyed by provider.
	Providers map[AIProvider]ProviderCredentials

	// Vertex locates the Vertex AI project.
	Vertex VertexSettings
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	return l.ProviderConfigured(l.Provider)
}

// ProviderConfigured returns true if the given provider has what it needs.
func (l LLMSettings) ProviderConfigured(p AIProvider) bool {
	if !p.IsValid() {
		return false
	}
	if p == AIProviderVertex {
		return l.Vertex.Project != ""
	}
	if p.RequiresAPIKey() && l.CredentialsFor(p).APIKey == "" {
		return false
	}
	return true
}

// CredentialsFor returns the credentials for a provider, falling back to the
// default provider's key and URL when it is the default.
func (l LLMSettings) CredentialsFor(p AIProvider) ProviderCredentials {
	creds := l.Providers[p]
	if p == l.Provider {
		if creds.APIKey == "" {
			creds.APIKey = l.APIKey
		}
		if creds.BaseURL == "" {
			creds.BaseURL = l.BaseURL
		}
	}
	return creds
}

// ChunkingSettings is the authoritative chunk policy.
type ChunkingSettings struct {
	Size    int
	Overlap int
}

// SearchSettings holds retrieval defaults.
type SearchSettings struct {
	Limit        int
	Threshold    float64
	KeywordBoost float64
	Mode         RetrievalMode
}

// ProcessingSettings bounds document processing.
type ProcessingSettings struct {
	// Workers bounds concurrent documents during project reindexing.
	Workers int

	// Timeout bounds a single processing round.
	Timeout time.Duration
}

// StorageSettings locates local persistence.
type StorageSettings struct {
	DataDir string
	Backend string
}

// BlobSettings selects the blob store.
type BlobSettings struct {
	// Backend is one of "filesystem", "http", "gcs", "gdrive".
	Backend string
	Root    string
	Bucket  string

	// DriveToken is a Google Drive access token. Empty means Application
	// Default Credentials.
	DriveToken string

	// GitHubToken authenticates github:// references. Empty means anonymous.
	GitHubToken string

	// DropboxToken enables dropbox:// references.
	DropboxToken string
}

// MetadataSettings selects the document metadata store.
type MetadataSettings struct {
	// Backend is one of "sqlite", "firestore".
	Backend string
	Project string
}

// ServerSettings configures the HTTP API.
type ServerSettings struct {
	Addr string
}

// AppSettings holds all application settings.
type AppSettings struct {
	Embedding  EmbeddingSettings
	LLM        LLMSettings
	Chunking   ChunkingSettings
	Search     SearchSettings
	Processing ProcessingSettings
	Storage    StorageSettings
	Blob       BlobSettings
	Metadata   MetadataSettings
	Server     ServerSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// AI providers are left unconfigured; users set them via config or settings commands.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{
			BatchSize:   64,
			Concurrency: 2,
		},
		LLM: LLMSettings{
			Temperature: 0.7,
			MaxTokens:   1000,
			Vertex:      VertexSettings{Region: "us-central1"},
		},
		Chunking: ChunkingSettings{
			Size:    1000,
			Overlap: 0,
		},
		Search: SearchSettings{
			Limit:        5,
			Threshold:    0.7,
			KeywordBoost: 0.3,
			Mode:         RetrievalHybrid,
		},
		Processing: ProcessingSettings{
			Workers: 4,
			Timeout: 300 * time.Second,
		},
		Storage: StorageSettings{Backend: "sqlite"},
		Blob:    BlobSettings{Backend: "filesystem"},
		Metadata: MetadataSettings{
			Backend: "sqlite",
		},
		Server: ServerSettings{Addr: ":8080"},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllLLMProviders returns providers that support answer generation.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
		AIProviderVertex,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
		AIProviderVertex:    "gemini-1.5-flash",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
