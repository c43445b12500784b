package search

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

type stubSearch struct {
	req     domain.SearchRequest
	results *domain.SearchResults
	err     error
}

func (s *stubSearch) Search(_ context.Context, req domain.SearchRequest) (*domain.SearchResults, error) {
	s.req = req
	return s.results, s.err
}

func (s *stubSearch) SimilarQueries(context.Context, string, string, int) ([]domain.SimilarQuery, error) {
	return nil, nil
}

func newTestView(svc *stubSearch) *View {
	v := NewView(nil, nil, svc, "proj-1")
	v.SetDimensions(100, 30)
	return v
}

func typeText(v *View, s string) {
	v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func TestNewView(t *testing.T) {
	v := NewView(nil, nil, nil, "proj-1")

	require.NotNil(t, v)
	assert.False(t, v.Ready())
	assert.True(t, v.InputFocused())
	assert.Equal(t, domain.RetrievalHybrid, v.Mode())
	assert.Equal(t, "Initialising...", v.View())
}

func TestView_SubmitRunsSearch(t *testing.T) {
	svc := &stubSearch{results: &domain.SearchResults{
		Query: "refund",
		Results: []domain.RetrievalResult{
			{DocumentID: "d1", ChunkIndex: 0, Content: "Refunds within 30 days", Score: 0.9, Source: domain.RetrievalVector},
		},
	}}
	v := newTestView(svc)
	v.SetMode(domain.RetrievalKeyword)
	typeText(v, "refund")

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.False(t, v.InputFocused())

	msg := cmd()
	done, ok := msg.(messages.SearchCompleted)
	require.True(t, ok)
	assert.Equal(t, domain.SearchRequest{
		ProjectID: "proj-1", Query: "refund", Limit: DefaultLimit, Mode: domain.RetrievalKeyword,
	}, svc.req)

	v.Update(done)
	require.Len(t, v.Results(), 1)
	assert.NoError(t, v.Err())
	assert.Contains(t, v.View(), "Refunds within 30 days")
}

func TestView_EmptyQueryIgnored(t *testing.T) {
	v := newTestView(&stubSearch{})

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.True(t, v.InputFocused())
}

func TestView_SearchError(t *testing.T) {
	v := newTestView(&stubSearch{})

	v.Update(messages.SearchCompleted{Err: errors.New("index offline")})

	require.Error(t, v.Err())
	assert.True(t, v.InputFocused())
	assert.Contains(t, v.View(), "index offline")
}

func TestView_NoResults(t *testing.T) {
	v := newTestView(&stubSearch{})

	v.Update(messages.SearchCompleted{Results: &domain.SearchResults{}})

	assert.Empty(t, v.Results())
	assert.Contains(t, v.View(), "No matching passages.")
}

func TestView_NilServiceReportsError(t *testing.T) {
	v := NewView(nil, nil, nil, "proj-1")
	v.SetDimensions(80, 24)
	typeText(v, "x")

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	msg, ok := cmd().(messages.ErrorOccurred)
	require.True(t, ok)
	assert.ErrorIs(t, msg.Err, ErrNoSearchService)
}

func TestView_NavigateAndReset(t *testing.T) {
	v := newTestView(&stubSearch{})
	v.Update(messages.SearchCompleted{Results: &domain.SearchResults{Results: []domain.RetrievalResult{
		{DocumentID: "a"}, {DocumentID: "b"},
	}}})

	v.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, v.SelectedIndex())
	v.Update(tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 0, v.SelectedIndex())

	v.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
	assert.True(t, v.InputFocused())
	assert.Empty(t, v.Results())
	assert.Empty(t, v.Query())
}

func TestView_EscReturnsToInput(t *testing.T) {
	v := newTestView(&stubSearch{})
	v.Update(messages.SearchCompleted{Results: &domain.SearchResults{}})
	require.False(t, v.InputFocused())

	v.Update(tea.KeyMsg{Type: tea.KeyEsc})

	assert.True(t, v.InputFocused())
}
