// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	ollamaembed "github.com/custodia-labs/sercha-rag/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/sercha-rag/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/sercha-rag/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/sercha-rag/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/sercha-rag/internal/adapters/driven/llm/openai"
	vertexllm "github.com/custodia-labs/sercha-rag/internal/adapters/driven/llm/vertex"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
// Returns nil without error when no embedding provider is configured.
func CreateAndValidateEmbeddingService(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'sercha-rag settings set' to fix",
			domain.ErrEmbeddingUnavailable, err)
	}
	if svc == nil {
		return nil, nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(pingCtx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrEmbeddingUnavailable, err)
	}
	return svc, nil
}

// ValidateEmbeddingConfig validates an embedding configuration by creating a service and pinging it.
func ValidateEmbeddingConfig(ctx context.Context, settings *domain.EmbeddingSettings) error {
	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return err
	}
	if svc == nil {
		return nil
	}
	defer svc.Close()

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return svc.Ping(pingCtx)
}

// ValidateLLMConfig validates the default LLM provider by creating a service and pinging it.
func ValidateLLMConfig(ctx context.Context, settings *domain.LLMSettings) error {
	if settings == nil || !settings.IsConfigured() {
		return nil
	}

	svc, err := CreateLLMService(ctx, settings, settings.Provider)
	if err != nil {
		return err
	}
	defer svc.Close()

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return svc.Ping(pingCtx)
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || settings.Provider == "" {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return createOllamaEmbedding(settings), nil

	case domain.AIProviderOpenAI:
		if settings.APIKey == "" {
			return nil, fmt.Errorf("openai embeddings require an API key")
		}
		return createOpenAIEmbedding(settings)

	case domain.AIProviderAnthropic, domain.AIProviderVertex:
		return nil, fmt.Errorf("%s does not support embeddings, use ollama or openai", settings.Provider)

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}

// CreateLLMService creates the LLM service for one provider using the
// credentials recorded for it in settings.
func CreateLLMService(ctx context.Context, settings *domain.LLMSettings, provider domain.AIProvider) (driven.LLMService, error) {
	if settings == nil {
		return nil, domain.ErrLLMUnavailable
	}
	if !settings.ProviderConfigured(provider) {
		return nil, fmt.Errorf("%w: provider %q is not configured", domain.ErrLLMUnavailable, provider)
	}

	creds := settings.CredentialsFor(provider)
	model := ""
	if provider == settings.Provider {
		model = settings.Model
	}

	switch provider {
	case domain.AIProviderOllama:
		return ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL: creds.BaseURL,
			Model:   model,
		}), nil

	case domain.AIProviderOpenAI:
		return openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:  creds.APIKey,
			BaseURL: creds.BaseURL,
			Model:   model,
		})

	case domain.AIProviderAnthropic:
		return anthropicllm.NewLLMService(anthropicllm.Config{
			APIKey:  creds.APIKey,
			BaseURL: creds.BaseURL,
			Model:   model,
		})

	case domain.AIProviderVertex:
		return vertexllm.NewLLMService(ctx, vertexllm.Config{
			Project: settings.Vertex.Project,
			Region:  settings.Vertex.Region,
			Model:   model,
		})

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}

// createOllamaEmbedding creates an Ollama embedding service.
func createOllamaEmbedding(settings *domain.EmbeddingSettings) driven.EmbeddingService {
	dimensions := settings.Dimensions
	if dimensions == 0 {
		dimensions = domain.EmbeddingDimensions()[settings.Model]
	}

	return ollamaembed.NewEmbeddingService(ollamaembed.Config{
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: dimensions,
	})
}

// createOpenAIEmbedding creates an OpenAI embedding service.
func createOpenAIEmbedding(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	return openaiembed.NewEmbeddingService(openaiembed.Config{
		APIKey:     settings.APIKey,
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: settings.Dimensions,
	})
}
