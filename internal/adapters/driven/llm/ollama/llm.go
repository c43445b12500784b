// Package ollama provides an LLM service adapter using Ollama.
package ollama

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/httpjson"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultLLMModel   = "llama3.2"
	DefaultLLMTimeout = 300 * time.Second
)

// LLMConfig holds configuration for the Ollama LLM service.
type LLMConfig struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Model is the LLM model to use (default: llama3.2).
	Model string

	// Timeout is the request timeout (default: 300s). Local models can be slow.
	Timeout time.Duration
}

// LLMService provides chat completions using Ollama.
type LLMService struct {
	client *httpjson.Client
	model  string
}

type options struct {
	NumPredict  int      `json:"num_predict,omitempty"`
	Temperature float64  `json:"temperature"`
	Stop        []string `json:"stop,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  options       `json:"options"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// NewLLMService creates a new Ollama LLM service.
func NewLLMService(cfg LLMConfig) *LLMService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultLLMTimeout
	}

	return &LLMService{
		client: httpjson.New(cfg.BaseURL, cfg.Timeout, nil),
		model:  cfg.Model,
	}
}

// Generate produces text completion from a prompt.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	messages := []driven.ChatMessage{{Role: "user", Content: prompt}}
	chatOpts := driven.ChatOptions{MaxTokens: opts.MaxTokens, Temperature: opts.Temperature}
	return s.complete(ctx, messages, chatOpts, opts.StopWords)
}

// Chat conducts a multi-turn conversation.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	return s.complete(ctx, messages, opts, nil)
}

func (s *LLMService) complete(
	ctx context.Context,
	messages []driven.ChatMessage,
	opts driven.ChatOptions,
	stop []string,
) (string, error) {
	req := chatRequest{
		Model:    s.model,
		Messages: make([]chatMessage, len(messages)),
		Options: options{
			NumPredict:  opts.MaxTokens,
			Temperature: opts.Temperature,
			Stop:        stop,
		},
	}
	if opts.Model != "" {
		req.Model = opts.Model
	}
	for i, m := range messages {
		req.Messages[i] = chatMessage{Role: m.Role, Content: m.Content}
	}

	var resp chatResponse
	if err := s.client.PostJSON(ctx, "/api/chat", req, &resp); err != nil {
		return "", fmt.Errorf("ollama: %w", err)
	}
	if resp.Message.Content == "" {
		return "", fmt.Errorf("ollama: empty response from model %s", req.Model)
	}
	return resp.Message.Content, nil
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping checks Ollama is running via /api/tags.
func (s *LLMService) Ping(ctx context.Context) error {
	if err := s.client.Get(ctx, "/api/tags", nil); err != nil {
		return fmt.Errorf("ollama: not reachable at %s: %w", s.client.BaseURL(), err)
	}
	return nil
}

// Close releases resources.
func (s *LLMService) Close() error {
	return nil
}
