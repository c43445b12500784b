package tui

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

func newTestApp(t *testing.T, q *MockQueryService, s *MockSearchService) *App {
	t.Helper()
	ports := &Ports{Query: q, ProjectID: "proj-1", UserID: "alice"}
	if s != nil {
		ports.Search = s
	}
	app, err := NewApp(ports)
	require.NoError(t, err)
	app.SetDimensions(100, 30)
	return app
}

func typeText(app *App, s string) {
	app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

// run executes cmd and feeds every resulting message back into app.
func run(app *App, cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			run(app, c)
		}
		return
	}
	switch msg.(type) {
	case messages.AnswerReceived, messages.SearchCompleted, messages.ErrorOccurred:
		app.Update(msg)
	}
}

func TestNewApp_Success(t *testing.T) {
	app, err := NewApp(&Ports{Query: &MockQueryService{}, ProjectID: "proj-1"})

	require.NoError(t, err)
	require.NotNil(t, app)
	assert.Equal(t, messages.ViewAsk, app.CurrentView())
	assert.Equal(t, domain.RetrievalHybrid, app.Mode())
}

func TestNewApp_InvalidPorts(t *testing.T) {
	app, err := NewApp(&Ports{ProjectID: "proj-1"})

	require.ErrorIs(t, err, ErrMissingQueryService)
	assert.Nil(t, app)
}

func TestApp_Init(t *testing.T) {
	app := newTestApp(t, &MockQueryService{}, nil)

	assert.NotNil(t, app.Init())
}

func TestApp_View_NotReady(t *testing.T) {
	app, err := NewApp(&Ports{Query: &MockQueryService{}, ProjectID: "proj-1"})
	require.NoError(t, err)

	assert.False(t, app.Ready())
	assert.Equal(t, "Initialising...", app.View())
}

func TestApp_Update_WindowSize(t *testing.T) {
	app, _ := NewApp(&Ports{Query: &MockQueryService{}, ProjectID: "proj-1"})

	app.Update(tea.WindowSizeMsg{Width: 120, Height: 40})

	assert.True(t, app.Ready())
	assert.Contains(t, app.View(), "project proj-1")
}

func TestApp_AskRoundTrip(t *testing.T) {
	var gotUser, gotProject string
	q := &MockQueryService{SubmitFunc: func(
		_ context.Context, projectID, userID, text string, _ domain.QueryOptions,
	) (*domain.Answer, error) {
		gotProject, gotUser = projectID, userID
		return &domain.Answer{
			Query:   text,
			Answer:  "The API is rate limited to 100 requests per minute.",
			Sources: []domain.Source{{ID: "d1", Title: "limits.md", Relevance: 0.8}},
		}, nil
	}}
	app := newTestApp(t, q, nil)
	typeText(app, "rate limits?")

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	run(app, cmd)

	assert.Equal(t, "proj-1", gotProject)
	assert.Equal(t, "alice", gotUser)
	assert.NoError(t, app.Err())
	assert.Contains(t, app.View(), "100 requests per minute")
	assert.Contains(t, app.View(), "limits.md")
}

func TestApp_AskError(t *testing.T) {
	q := &MockQueryService{SubmitFunc: func(context.Context, string, string, string, domain.QueryOptions) (*domain.Answer, error) {
		return nil, errors.New("llm unavailable")
	}}
	app := newTestApp(t, q, nil)
	typeText(app, "hello")

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	run(app, cmd)

	require.Error(t, app.Err())
	assert.Contains(t, app.View(), "llm unavailable")
}

func TestApp_TabSwitchesViews(t *testing.T) {
	app := newTestApp(t, &MockQueryService{}, &MockSearchService{})

	app.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, messages.ViewSearch, app.CurrentView())

	app.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, messages.ViewAsk, app.CurrentView())
}

func TestApp_SearchRoundTrip(t *testing.T) {
	var got domain.SearchRequest
	s := &MockSearchService{SearchFunc: func(_ context.Context, req domain.SearchRequest) (*domain.SearchResults, error) {
		got = req
		return &domain.SearchResults{Query: req.Query, Results: []domain.RetrievalResult{
			{DocumentID: "d1", Content: "token bucket", Score: 0.7, Source: domain.RetrievalKeyword},
		}}, nil
	}}
	app := newTestApp(t, &MockQueryService{}, s)
	app.Update(tea.KeyMsg{Type: tea.KeyTab})
	typeText(app, "bucket")

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	run(app, cmd)

	assert.Equal(t, "proj-1", got.ProjectID)
	assert.Equal(t, "bucket", got.Query)
	assert.Contains(t, app.View(), "token bucket")
}

func TestApp_CycleModeUpdatesBothViews(t *testing.T) {
	var got domain.RetrievalMode
	s := &MockSearchService{SearchFunc: func(_ context.Context, req domain.SearchRequest) (*domain.SearchResults, error) {
		got = req.Mode
		return &domain.SearchResults{}, nil
	}}
	app := newTestApp(t, &MockQueryService{}, s)

	app.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	assert.Equal(t, domain.RetrievalVector, app.Mode())
	assert.Contains(t, app.View(), "[vector]")

	app.Update(tea.KeyMsg{Type: tea.KeyTab})
	typeText(app, "q")
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	run(app, cmd)

	assert.Equal(t, domain.RetrievalVector, got)
}

func TestNextMode(t *testing.T) {
	assert.Equal(t, domain.RetrievalKeyword, nextMode(domain.RetrievalVector))
	assert.Equal(t, domain.RetrievalHybrid, nextMode(domain.RetrievalKeyword))
	assert.Equal(t, domain.RetrievalVector, nextMode(domain.RetrievalHybrid))
	assert.Equal(t, domain.RetrievalVector, nextMode("unknown"))
}

func TestApp_HelpAndBack(t *testing.T) {
	app := newTestApp(t, &MockQueryService{}, nil)
	app.Update(tea.KeyMsg{Type: tea.KeyTab})

	app.Update(tea.KeyMsg{Type: tea.KeyF1})
	assert.Equal(t, messages.ViewHelp, app.CurrentView())
	view := app.View()
	assert.Contains(t, view, "Retrieval modes")
	assert.Contains(t, view, "> hybrid")

	app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, messages.ViewSearch, app.CurrentView())
}

func TestApp_ViewChangedMessage(t *testing.T) {
	app := newTestApp(t, &MockQueryService{}, nil)

	app.Update(messages.ViewChanged{View: messages.ViewSearch})

	assert.Equal(t, messages.ViewSearch, app.CurrentView())
}

func TestApp_Quit(t *testing.T) {
	app := newTestApp(t, &MockQueryService{}, nil)

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	_, cmd = app.Update(messages.Quit{})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestApp_ErrorOccurredGoesToActiveView(t *testing.T) {
	app := newTestApp(t, &MockQueryService{}, nil)
	app.Update(tea.KeyMsg{Type: tea.KeyTab})

	app.Update(messages.ErrorOccurred{Err: errors.New("boom")})

	require.Error(t, app.Err())
	assert.Contains(t, app.View(), "boom")
}

func TestApp_WithContext(t *testing.T) {
	app := newTestApp(t, &MockQueryService{}, nil)

	assert.Same(t, app, app.WithContext(context.Background()))
}
