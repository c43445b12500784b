// Package ask provides the question and answer view for the TUI.
package ask

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

// ErrNoQueryService indicates that no query service was provided.
var ErrNoQueryService = errors.New("query service is required")

// View asks questions about one project and shows the cited answer.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	input     *input.TextInput
	sources   *list.ResultList
	statusbar *status.Bar
	spinner   spinner.Model

	query     driving.QueryService
	projectID string
	userID    string
	mode      domain.RetrievalMode
	ctx       context.Context

	width      int
	height     int
	ready      bool
	thinking   bool
	focusInput bool
	question   string
	answer     *domain.Answer
	notice     string
	err        error
}

// NewView creates a new ask view for the given project and user.
func NewView(
	s *styles.Styles,
	km *keymap.KeyMap,
	query driving.QueryService,
	projectID, userID string,
) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = s.Subtitle

	v := &View{
		styles:     s,
		keymap:     km,
		input:      input.NewTextInput(s, "Ask", "What would you like to know?"),
		sources:    list.NewResultList(s, "Sources"),
		statusbar:  status.NewBar(s, km),
		spinner:    sp,
		query:      query,
		projectID:  projectID,
		userID:     userID,
		ctx:        context.Background(),
		width:      80,
		height:     24,
		focusInput: true,
	}
	v.SetMode(domain.RetrievalHybrid)
	return v
}

// WithContext sets the context used for query calls.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Update handles messages for the ask view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case spinner.TickMsg:
		if !v.thinking {
			return v, nil
		}
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd

	case messages.AnswerReceived:
		v.handleAnswer(msg)
		return v, nil

	case messages.ErrorOccurred:
		v.thinking = false
		v.setError(msg.Err)
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	keyStr := msg.String()

	if v.thinking {
		return v, nil
	}

	if keymap.Matches(keyStr, v.keymap.Clear) {
		v.Reset()
		return v, v.input.Focus()
	}

	if v.focusInput {
		if keymap.Matches(keyStr, v.keymap.Submit) {
			return v, v.submit()
		}
		var cmd tea.Cmd
		v.input, cmd = v.input.Update(msg)
		return v, cmd
	}

	switch {
	case keymap.Matches(keyStr, v.keymap.Up):
		v.sources.MoveUp()
	case keymap.Matches(keyStr, v.keymap.Down):
		v.sources.MoveDown()
	case keymap.Matches(keyStr, v.keymap.Back):
		v.focusInput = true
		return v, v.input.Focus()
	}
	return v, nil
}

func (v *View) submit() tea.Cmd {
	question := v.input.Value()
	if question == "" {
		return nil
	}

	v.thinking = true
	v.question = question
	v.answer = nil
	v.notice = ""
	v.err = nil
	v.sources.SetItems(nil)
	v.statusbar.SetState(status.StateWorking)
	v.statusbar.SetMessage("Thinking...")
	v.focusInput = false
	v.input.Blur()

	return tea.Batch(v.spinner.Tick, v.ask(question))
}

func (v *View) ask(question string) tea.Cmd {
	query := v.query
	ctx := v.ctx
	projectID, userID := v.projectID, v.userID
	opts := domain.DefaultQueryOptions()
	opts.Mode = v.mode

	return func() tea.Msg {
		if query == nil {
			return messages.ErrorOccurred{Err: ErrNoQueryService}
		}
		answer, err := query.Submit(ctx, projectID, userID, question, opts)
		return messages.AnswerReceived{Question: question, Answer: answer, Err: err}
	}
}

func (v *View) handleAnswer(msg messages.AnswerReceived) {
	v.thinking = false

	switch {
	case errors.Is(msg.Err, domain.ErrNoRelevantContent):
		v.notice = "No relevant content found in this project."
		v.statusbar.Clear()
		v.focusInput = true
		v.input.Focus()
	case msg.Err != nil:
		v.setError(msg.Err)
		v.focusInput = true
		v.input.Focus()
	default:
		v.err = nil
		v.answer = msg.Answer
		v.sources.SetItems(list.FromSources(msg.Answer.Sources))
		v.statusbar.SetState(status.StateResults)
		v.statusbar.SetMessage("")
		v.statusbar.SetCount(len(msg.Answer.Sources))
	}
}

func (v *View) setError(err error) {
	v.err = err
	v.statusbar.SetState(status.StateError)
	v.statusbar.SetMessage(err.Error())
}

// View renders the ask view.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	sections := make([]string, 0, 12)
	sections = append(sections, v.styles.Title.Render("Sercha RAG")+
		v.styles.Muted.Render("  project "+v.projectID), "", v.input.View(), "")

	switch {
	case v.thinking:
		sections = append(sections, v.spinner.View()+" "+v.styles.Muted.Render(v.question), "")
	case v.answer != nil:
		body := v.styles.Answer.Width(max(v.width-2, 20)).Render(v.answer.Answer)
		sections = append(sections, body, "", v.sources.View(), "")
	case v.notice != "":
		sections = append(sections, v.styles.Warning.Render(v.notice), "")
	}

	if v.err != nil {
		sections = append(sections, v.styles.Error.Render("Error: "+v.err.Error()), "")
	}

	sections = append(sections, v.statusbar.View())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true

	v.input.SetWidth(width)
	// Leave room for the header, the input, the answer and the status bar
	v.sources.SetDimensions(width, max(height/2, 5))
	v.statusbar.SetWidth(width)
}

// SetMode sets the retrieval mode used for the next question.
func (v *View) SetMode(mode domain.RetrievalMode) {
	v.mode = mode
	v.statusbar.SetMode(mode.String())
}

// Mode returns the retrieval mode.
func (v *View) Mode() domain.RetrievalMode {
	return v.mode
}

// Thinking reports whether a question is in flight.
func (v *View) Thinking() bool {
	return v.thinking
}

// Answer returns the last answer, if any.
func (v *View) Answer() *domain.Answer {
	return v.answer
}

// Notice returns the informational message shown instead of an answer.
func (v *View) Notice() string {
	return v.notice
}

// Err returns the current error, if any.
func (v *View) Err() error {
	return v.err
}

// InputFocused returns whether the input has focus.
func (v *View) InputFocused() bool {
	return v.focusInput
}

// SetQuestion sets the input text.
func (v *View) SetQuestion(q string) {
	v.input.SetValue(q)
}

// SelectedSource returns the index of the highlighted source.
func (v *View) SelectedSource() int {
	return v.sources.Selected()
}

// Reset clears the answer and returns focus to the input.
func (v *View) Reset() {
	v.thinking = false
	v.focusInput = true
	v.question = ""
	v.answer = nil
	v.notice = ""
	v.err = nil
	v.input.Reset()
	v.input.Focus()
	v.sources.SetItems(nil)
	v.statusbar.Clear()
}
