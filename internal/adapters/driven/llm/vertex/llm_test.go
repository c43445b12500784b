package vertex

import (
	"context"
	"testing"

	"cloud.google.com/go/vertexai/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

func TestNewLLMService_RequiresProject(t *testing.T) {
	_, err := NewLLMService(context.Background(), Config{})
	assert.Error(t, err)
}

func TestSplitMessages(t *testing.T) {
	system, history, last, err := splitMessages([]driven.ChatMessage{
		{Role: "system", Content: "Answer from context only."},
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi"},
		{Role: "user", Content: "what is the refund window?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Answer from context only.", system)
	assert.Equal(t, "what is the refund window?", last)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "model", history[1].Role)
	assert.Equal(t, genai.Text("hi"), history[1].Parts[0])
}

func TestSplitMessages_Invalid(t *testing.T) {
	_, _, _, err := splitMessages([]driven.ChatMessage{{Role: "system", Content: "only system"}})
	assert.Error(t, err)

	_, _, _, err = splitMessages([]driven.ChatMessage{{Role: "assistant", Content: "dangling"}})
	assert.Error(t, err)
}

func TestResponseText(t *testing.T) {
	_, err := responseText(nil)
	assert.Error(t, err)

	text, err := responseText(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("Refunds take "), genai.Text("14 days.")}},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Refunds take 14 days.", text)

	_, err = responseText(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{}}},
	})
	assert.Error(t, err)
}
