package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/logger"
)

// Ensure AnswerRouter implements the interface.
var _ driven.AnswerGenerator = (*AnswerRouter)(nil)

// LLMFactory builds the LLM service for a provider.
type LLMFactory func(ctx context.Context, provider domain.AIProvider) (driven.LLMService, error)

// AnswerRouter generates answers with the provider named by each request,
// falling back to the configured default provider. Services are created on
// first use and reused afterwards.
type AnswerRouter struct {
	settings domain.LLMSettings
	prompts  driven.PromptStore
	factory  LLMFactory

	mu       sync.Mutex
	services map[domain.AIProvider]driven.LLMService
}

// NewAnswerRouter creates a router for the given LLM settings.
func NewAnswerRouter(settings domain.LLMSettings, prompts driven.PromptStore) *AnswerRouter {
	r := &AnswerRouter{
		settings: settings,
		prompts:  prompts,
		services: make(map[domain.AIProvider]driven.LLMService),
	}
	r.factory = func(ctx context.Context, provider domain.AIProvider) (driven.LLMService, error) {
		return CreateLLMService(ctx, &r.settings, provider)
	}
	return r
}

// SetFactory replaces the service factory.
func (r *AnswerRouter) SetFactory(factory LLMFactory) {
	r.factory = factory
}

// SetPromptStore implements driven.PromptStoreAware.
func (r *AnswerRouter) SetPromptStore(store driven.PromptStore) {
	r.prompts = store
}

// Generate answers query from contextText.
func (r *AnswerRouter) Generate(
	ctx context.Context, query, contextText string, params domain.GenerateParams,
) (*driven.GeneratedAnswer, error) {
	provider := params.Provider
	if provider == "" {
		provider = r.settings.Provider
	}
	if !provider.IsValid() {
		return nil, domain.NewValidationError("provider", fmt.Sprintf("unknown provider %q", provider))
	}

	messages, err := r.messages(query, contextText)
	if err != nil {
		return nil, err
	}

	svc, err := r.service(ctx, provider)
	if err != nil {
		return nil, domain.NewProviderError(provider.String(), "generate", err)
	}

	model := params.Model
	if model == "" {
		model = svc.ModelName()
	}

	logger.Debug("Generating answer with %s/%s", provider, model)
	text, err := svc.Chat(ctx, messages, driven.ChatOptions{
		Model:       params.Model,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrTimeout) {
			err = fmt.Errorf("%w: %w", domain.ErrTimeout, err)
		}
		return nil, domain.NewProviderError(provider.String(), "generate", err)
	}

	return &driven.GeneratedAnswer{Text: strings.TrimSpace(text), Model: model}, nil
}

// Close releases every service the router created.
func (r *AnswerRouter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for provider, svc := range r.services {
		if err := svc.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", provider, err))
		}
		delete(r.services, provider)
	}
	return errors.Join(errs...)
}

func (r *AnswerRouter) service(ctx context.Context, provider domain.AIProvider) (driven.LLMService, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if svc, ok := r.services[provider]; ok {
		return svc, nil
	}
	svc, err := r.factory(ctx, provider)
	if err != nil {
		return nil, err
	}
	r.services[provider] = svc
	return svc, nil
}

func (r *AnswerRouter) messages(query, contextText string) ([]driven.ChatMessage, error) {
	if r.prompts == nil {
		return nil, fmt.Errorf("%w: no prompt store", domain.ErrLLMUnavailable)
	}
	system, err := r.prompts.Load(driven.PromptAnswerSystem)
	if err != nil {
		return nil, fmt.Errorf("loading %s prompt: %w", driven.PromptAnswerSystem, err)
	}
	user, err := r.prompts.Load(driven.PromptAnswerUser)
	if err != nil {
		return nil, fmt.Errorf("loading %s prompt: %w", driven.PromptAnswerUser, err)
	}

	return []driven.ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: fmt.Sprintf(user, contextText, query)},
	}, nil
}
