package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRetrievalMode_IsValid tests all valid and invalid retrieval modes
func TestRetrievalMode_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		mode     RetrievalMode
		expected bool
	}{
		{name: "vector is valid", mode: RetrievalVector, expected: true},
		{name: "keyword is valid", mode: RetrievalKeyword, expected: true},
		{name: "hybrid is valid", mode: RetrievalHybrid, expected: true},
		{name: "empty string is invalid", mode: RetrievalMode(""), expected: false},
		{name: "unknown mode is invalid", mode: RetrievalMode("text_only"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.mode.IsValid())
		})
	}
}

// TestRetrievalMode_RequiresEmbedding tests which modes need an embedder
func TestRetrievalMode_RequiresEmbedding(t *testing.T) {
	assert.True(t, RetrievalVector.RequiresEmbedding())
	assert.True(t, RetrievalHybrid.RequiresEmbedding())
	assert.False(t, RetrievalKeyword.RequiresEmbedding())
}

// TestAIProvider_IsValid tests provider recognition
func TestAIProvider_IsValid(t *testing.T) {
	for _, p := range AllLLMProviders() {
		assert.True(t, p.IsValid(), p)
		assert.NotEqual(t, unknownDescription, p.Description())
	}
	assert.False(t, AIProvider("cohere").IsValid())
	assert.Equal(t, unknownDescription, AIProvider("cohere").Description())
}

// TestEmbeddingSettings_IsConfigured tests embedding configuration checks
func TestEmbeddingSettings_IsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		settings EmbeddingSettings
		expected bool
	}{
		{"empty", EmbeddingSettings{}, false},
		{"ollama needs no key", EmbeddingSettings{Provider: AIProviderOllama}, true},
		{"openai without key", EmbeddingSettings{Provider: AIProviderOpenAI}, false},
		{"openai with key", EmbeddingSettings{Provider: AIProviderOpenAI, APIKey: "sk"}, true},
		{"anthropic has no embeddings", EmbeddingSettings{Provider: AIProviderAnthropic, APIKey: "k"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.settings.IsConfigured())
		})
	}
}

// TestLLMSettings_ProviderConfigured tests per-provider credential lookup
func TestLLMSettings_ProviderConfigured(t *testing.T) {
	s := LLMSettings{
		Provider: AIProviderOpenAI,
		APIKey:   "sk-default",
		Providers: map[AIProvider]ProviderCredentials{
			AIProviderAnthropic: {APIKey: "ak"},
		},
	}

	assert.True(t, s.IsConfigured())
	assert.True(t, s.ProviderConfigured(AIProviderAnthropic))
	assert.True(t, s.ProviderConfigured(AIProviderOllama))
	assert.False(t, s.ProviderConfigured(AIProviderVertex))
	assert.Equal(t, "sk-default", s.CredentialsFor(AIProviderOpenAI).APIKey)

	s.Vertex.Project = "proj"
	assert.True(t, s.ProviderConfigured(AIProviderVertex))
}

// TestDefaultAppSettings tests the documented defaults
func TestDefaultAppSettings(t *testing.T) {
	s := DefaultAppSettings()

	assert.Equal(t, 1000, s.Chunking.Size)
	assert.Equal(t, 0, s.Chunking.Overlap)
	assert.Equal(t, 5, s.Search.Limit)
	assert.InDelta(t, 0.7, s.Search.Threshold, 1e-9)
	assert.Equal(t, RetrievalHybrid, s.Search.Mode)
	assert.Equal(t, 4, s.Processing.Workers)
	assert.Equal(t, 300*time.Second, s.Processing.Timeout)
	assert.False(t, s.Embedding.IsConfigured())
	assert.False(t, s.LLM.IsConfigured())
}

// TestDefaultQueryOptions tests query option defaults
func TestDefaultQueryOptions(t *testing.T) {
	o := DefaultQueryOptions()
	assert.Equal(t, "en", o.Language)
	assert.Equal(t, 5, o.Limit)
	assert.Equal(t, RetrievalHybrid, o.Mode)
	require.NotNil(t, o.Temperature)
	assert.InDelta(t, 0.7, *o.Temperature, 1e-9)
	assert.Equal(t, 1000, o.MaxTokens)
}

// TestFeedback_Validate tests rating bounds
func TestFeedback_Validate(t *testing.T) {
	assert.NoError(t, Feedback{Rating: 1}.Validate())
	assert.NoError(t, Feedback{Rating: 5, Comment: "great"}.Validate())
	assert.ErrorIs(t, Feedback{Rating: 0}.Validate(), ErrInvalidInput)
	assert.ErrorIs(t, Feedback{Rating: 6}.Validate(), ErrInvalidInput)
}

// TestDefaultModels tests every provider has a default model
func TestDefaultModels(t *testing.T) {
	for _, p := range AllLLMProviders() {
		assert.NotEmpty(t, DefaultLLMModels()[p], p)
	}
	for _, p := range AllEmbeddingProviders() {
		model := DefaultEmbeddingModels()[p]
		assert.NotEmpty(t, model)
		assert.Positive(t, EmbeddingDimensions()[model])
	}
}
