// Package vertex provides an LLM service adapter using Gemini models on Vertex AI.
package vertex

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultRegion = "us-central1"
	DefaultModel  = "gemini-1.5-flash"
)

// Config holds configuration for the Vertex AI LLM service.
// Credentials come from Application Default Credentials.
type Config struct {
	// Project is the Google Cloud project ID (required).
	Project string

	// Region is the Vertex AI location (default: us-central1).
	Region string

	// Model is the Gemini model to use (default: gemini-1.5-flash).
	Model string
}

// LLMService provides completions using Gemini on Vertex AI.
type LLMService struct {
	client *genai.Client
	model  string
}

// NewLLMService creates a new Vertex AI LLM service.
func NewLLMService(ctx context.Context, cfg Config) (*LLMService, error) {
	if cfg.Project == "" {
		return nil, fmt.Errorf("vertex: project is required")
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	client, err := genai.NewClient(ctx, cfg.Project, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("vertex: creating client: %w", err)
	}

	return &LLMService{client: client, model: cfg.Model}, nil
}

// Generate produces text completion from a prompt.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	model := s.configure("", opts.MaxTokens, opts.Temperature)
	model.StopSequences = opts.StopWords

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("vertex: %w", err)
	}
	return responseText(resp)
}

// Chat conducts a multi-turn conversation. System messages become the
// model's system instruction and the last message is sent as the new turn.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	system, history, last, err := splitMessages(messages)
	if err != nil {
		return "", fmt.Errorf("vertex: %w", err)
	}

	model := s.configure(opts.Model, opts.MaxTokens, opts.Temperature)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	session := model.StartChat()
	session.History = history
	resp, err := session.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return "", fmt.Errorf("vertex: %w", err)
	}
	return responseText(resp)
}

// configure returns a fresh model handle so concurrent calls never share settings.
func (s *LLMService) configure(name string, maxTokens int, temperature float64) *genai.GenerativeModel {
	if name == "" {
		name = s.model
	}
	model := s.client.GenerativeModel(name)
	model.SetTemperature(float32(temperature))
	if maxTokens > 0 {
		model.SetMaxOutputTokens(int32(maxTokens))
	}
	return model
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping makes a minimal generation request; Vertex has no lightweight list call.
func (s *LLMService) Ping(ctx context.Context) error {
	if _, err := s.Generate(ctx, "ping", driven.GenerateOptions{MaxTokens: 1}); err != nil {
		return fmt.Errorf("vertex: ping failed: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (s *LLMService) Close() error {
	return s.client.Close()
}

// splitMessages separates system text, prior turns and the final user turn.
func splitMessages(messages []driven.ChatMessage) (string, []*genai.Content, string, error) {
	var system []string
	var turns []driven.ChatMessage
	for _, m := range messages {
		if m.Role == "system" {
			system = append(system, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	if len(turns) == 0 {
		return "", nil, "", errors.New("no user message")
	}

	last := turns[len(turns)-1]
	if last.Role != "user" {
		return "", nil, "", fmt.Errorf("last message has role %q, want user", last.Role)
	}

	history := make([]*genai.Content, 0, len(turns)-1)
	for _, m := range turns[:len(turns)-1] {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return strings.Join(system, "\n\n"), history, last.Content, nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("vertex: no candidates returned")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("vertex: empty response (finish reason %v)", resp.Candidates[0].FinishReason)
	}
	return b.String(), nil
}
