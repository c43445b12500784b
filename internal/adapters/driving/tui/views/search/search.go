// Package search provides the raw retrieval view for the TUI.
package search

import (
	"context"

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

// DefaultLimit is the number of chunks requested per search.
const DefaultLimit = 10

// View represents the search view with input, results list, and status bar.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	input     *input.TextInput
	list      *list.ResultList
	statusbar *status.Bar

	searchService driving.SearchService
	projectID     string
	mode          domain.RetrievalMode
	ctx           context.Context

	width      int
	height     int
	ready      bool
	err        error
	results    []domain.RetrievalResult
	focusInput bool // true = input mode (typing), false = results mode (navigating)
}

// NewView creates a new search view over one project.
func NewView(
	s *styles.Styles,
	km *keymap.KeyMap,
	searchService driving.SearchService,
	projectID string,
) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	v := &View{
		styles:        s,
		keymap:        km,
		input:         input.NewTextInput(s, "Search", "Find passages..."),
		list:          list.NewResultList(s, "Results"),
		statusbar:     status.NewBar(s, km),
		searchService: searchService,
		projectID:     projectID,
		ctx:           context.Background(),
		width:         80,
		height:        24,
		focusInput:    true,
	}
	v.SetMode(domain.RetrievalHybrid)
	return v
}

// WithContext sets the context for the view.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Update handles messages for the search view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.SearchCompleted:
		v.handleSearchCompleted(msg)
		return v, nil

	case messages.ErrorOccurred:
		v.setError(msg.Err)
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// handleKeyMsg processes keyboard input.
func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	keyStr := msg.String()

	if keymap.Matches(keyStr, v.keymap.Clear) {
		v.Reset()
		return v, v.input.Focus()
	}

	// Enter in input mode submits search
	if v.focusInput && keymap.Matches(keyStr, v.keymap.Submit) {
		query := v.input.Value()
		if query == "" {
			return v, nil
		}
		v.statusbar.SetState(status.StateWorking)
		v.statusbar.SetMessage("Searching...")
		v.focusInput = false
		v.input.Blur()
		return v, v.performSearch(query)
	}

	// Input mode: all keys go to input
	if v.focusInput {
		var cmd tea.Cmd
		v.input, cmd = v.input.Update(msg)
		return v, cmd
	}

	switch {
	case keymap.Matches(keyStr, v.keymap.Up):
		v.list.MoveUp()
	case keymap.Matches(keyStr, v.keymap.Down):
		v.list.MoveDown()
	case keymap.Matches(keyStr, v.keymap.Back):
		v.focusInput = true
		return v, v.input.Focus()
	}
	return v, nil
}

// performSearch executes a search and returns results.
func (v *View) performSearch(query string) tea.Cmd {
	svc := v.searchService
	ctx := v.ctx
	req := domain.SearchRequest{
		ProjectID: v.projectID,
		Query:     query,
		Limit:     DefaultLimit,
		Mode:      v.mode,
	}

	return func() tea.Msg {
		if svc == nil {
			return messages.ErrorOccurred{Err: ErrNoSearchService}
		}
		results, err := svc.Search(ctx, req)
		return messages.SearchCompleted{Mode: req.Mode, Results: results, Err: err}
	}
}

// handleSearchCompleted processes search results.
func (v *View) handleSearchCompleted(msg messages.SearchCompleted) {
	if msg.Err != nil {
		v.setError(msg.Err)
		v.focusInput = true
		v.input.Focus()
		return
	}

	v.err = nil
	v.results = nil
	if msg.Results != nil {
		v.results = msg.Results.Results
	}
	v.list.SetItems(list.FromResults(v.results))
	v.statusbar.SetState(status.StateResults)
	v.statusbar.SetMessage("")
	v.statusbar.SetCount(len(v.results))

	// Switch to results mode after successful search
	v.focusInput = false
	v.input.Blur()
}

func (v *View) setError(err error) {
	v.err = err
	v.statusbar.SetState(status.StateError)
	v.statusbar.SetMessage(err.Error())
}

// View renders the search view.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	sections := make([]string, 0, 10)
	sections = append(sections, v.styles.Title.Render("Search")+
		v.styles.Muted.Render("  project "+v.projectID), "", v.input.View(), "")

	if v.err != nil {
		sections = append(sections, v.styles.Error.Render("Error: "+v.err.Error()), "")
	}

	if v.statusbar.State() == status.StateResults && len(v.results) == 0 {
		sections = append(sections, v.styles.Muted.Render("No matching passages."), "")
	} else {
		sections = append(sections, v.list.View(), "")
	}

	sections = append(sections, v.statusbar.View())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true

	// Allocate space to components
	v.input.SetWidth(width)
	v.list.SetDimensions(width, height-8) // Reserve space for header, input, status
	v.statusbar.SetWidth(width)
}

// SetMode sets the retrieval mode for the next search.
func (v *View) SetMode(mode domain.RetrievalMode) {
	v.mode = mode
	v.statusbar.SetMode(mode.String())
}

// Mode returns the retrieval mode.
func (v *View) Mode() domain.RetrievalMode {
	return v.mode
}

// Ready returns whether the view is ready to render.
func (v *View) Ready() bool {
	return v.ready
}

// Query returns the current search query.
func (v *View) Query() string {
	return v.input.Value()
}

// SetQuery sets the search query.
func (v *View) SetQuery(query string) {
	v.input.SetValue(query)
}

// Results returns the current search results.
func (v *View) Results() []domain.RetrievalResult {
	return v.results
}

// SelectedIndex returns the index of the selected result.
func (v *View) SelectedIndex() int {
	return v.list.Selected()
}

// Err returns the current error, if any.
func (v *View) Err() error {
	return v.err
}

// Reset resets the view to initial input mode.
func (v *View) Reset() {
	v.focusInput = true
	v.input.Focus()
	v.input.Reset()
	v.results = nil
	v.list.SetItems(nil)
	v.err = nil
	v.statusbar.Clear()
}

// InputFocused returns whether the input has focus.
func (v *View) InputFocused() bool {
	return v.focusInput
}
