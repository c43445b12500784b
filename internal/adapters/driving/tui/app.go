package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/tui/views/ask"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/tui/views/search"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// App is the main TUI application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	ports  *Ports
	ctx    context.Context
	styles *styles.Styles
	keymap *keymap.KeyMap

	askView    *ask.View
	searchView *search.View

	// currentView tracks which view is active.
	currentView messages.ViewType

	// previousView is restored when leaving help.
	previousView messages.ViewType

	// mode is shared by both views.
	mode domain.RetrievalMode

	err error

	width  int
	height int
	ready  bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()

	return &App{
		ports:       ports,
		ctx:         context.Background(),
		styles:      s,
		keymap:      km,
		askView:     ask.NewView(s, km, ports.Query, ports.ProjectID, ports.user()),
		searchView:  search.NewView(s, km, ports.Search, ports.ProjectID),
		currentView: messages.ViewAsk,
		mode:        domain.RetrievalHybrid,
	}, nil
}

// WithContext sets the context for the app and its views.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.askView.WithContext(ctx)
	a.searchView.WithContext(ctx)
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("sercha-rag - "+a.ports.ProjectID),
		a.askView.Init(),
	)
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case messages.ViewChanged:
		return a, a.switchTo(msg.View)

	case messages.AnswerReceived:
		a.askView, cmd = a.askView.Update(msg)
		a.err = a.askView.Err()
		return a, cmd

	case messages.SearchCompleted:
		a.searchView, cmd = a.searchView.Update(msg)
		a.err = a.searchView.Err()
		return a, cmd

	case messages.ErrorOccurred:
		a.err = msg.Err
		if a.currentView == messages.ViewSearch {
			a.searchView, cmd = a.searchView.Update(msg)
		} else {
			a.askView, cmd = a.askView.Update(msg)
		}
		return a, cmd

	case messages.Quit:
		return a, tea.Quit
	}

	// Spinner ticks and blinks belong to whichever view is showing
	switch a.currentView {
	case messages.ViewAsk:
		a.askView, cmd = a.askView.Update(msg)
	case messages.ViewSearch:
		a.searchView, cmd = a.searchView.Update(msg)
	case messages.ViewHelp:
	}
	return a, cmd
}

func (a *App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	keyStr := msg.String()
	var cmd tea.Cmd

	switch {
	case keymap.Matches(keyStr, a.keymap.Quit):
		return a, tea.Quit
	case a.currentView == messages.ViewHelp:
		if keymap.Matches(keyStr, a.keymap.Back) || keymap.Matches(keyStr, a.keymap.Help) {
			return a, a.switchTo(a.previousView)
		}
		return a, nil
	case keymap.Matches(keyStr, a.keymap.Help):
		return a, a.switchTo(messages.ViewHelp)
	case keymap.Matches(keyStr, a.keymap.SwitchView):
		if a.currentView == messages.ViewAsk {
			return a, a.switchTo(messages.ViewSearch)
		}
		return a, a.switchTo(messages.ViewAsk)
	case keymap.Matches(keyStr, a.keymap.CycleMode):
		a.setMode(nextMode(a.mode))
		return a, nil
	}

	if a.currentView == messages.ViewSearch {
		a.searchView, cmd = a.searchView.Update(msg)
	} else {
		a.askView, cmd = a.askView.Update(msg)
	}
	return a, cmd
}

func (a *App) switchTo(view messages.ViewType) tea.Cmd {
	if view == messages.ViewHelp && a.currentView != messages.ViewHelp {
		a.previousView = a.currentView
	}
	a.currentView = view

	switch view {
	case messages.ViewAsk:
		return a.askView.Init()
	case messages.ViewSearch:
		return a.searchView.Init()
	case messages.ViewHelp:
	}
	return nil
}

func (a *App) setMode(mode domain.RetrievalMode) {
	a.mode = mode
	a.askView.SetMode(mode)
	a.searchView.SetMode(mode)
}

// nextMode returns the mode after m, wrapping around.
func nextMode(m domain.RetrievalMode) domain.RetrievalMode {
	modes := domain.AllRetrievalModes()
	for i, candidate := range modes {
		if candidate == m {
			return modes[(i+1)%len(modes)]
		}
	}
	return modes[0]
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	switch a.currentView {
	case messages.ViewSearch:
		return a.searchView.View()
	case messages.ViewHelp:
		return a.viewHelp()
	case messages.ViewAsk:
		return a.askView.View()
	default:
		return a.askView.View()
	}
}

// viewHelp renders the keybindings and retrieval modes.
func (a *App) viewHelp() string {
	var b strings.Builder
	b.WriteString(a.styles.Title.Render("Help"))
	b.WriteString("\n\n")

	for _, group := range a.keymap.FullHelp() {
		for _, binding := range group {
			h := binding.Help()
			fmt.Fprintf(&b, "  %-10s %s\n", h.Key, h.Desc)
		}
		b.WriteString("\n")
	}

	b.WriteString(a.styles.Subtitle.Render("Retrieval modes"))
	b.WriteString("\n")
	for _, m := range domain.AllRetrievalModes() {
		marker := "  "
		if m == a.mode {
			marker = "> "
		}
		fmt.Fprintf(&b, "%s%-8s %s\n", marker, m, m.Description())
	}

	b.WriteString("\n")
	b.WriteString(a.styles.Muted.Render("[esc] back"))
	return b.String()
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	return err
}

// CurrentView returns the current view type.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// Mode returns the retrieval mode in use.
func (a *App) Mode() domain.RetrievalMode {
	return a.mode
}

// Err returns the last error that occurred.
func (a *App) Err() error {
	return a.err
}

// Ready returns whether the app has been initialised.
func (a *App) Ready() bool {
	return a.ready
}

// SetDimensions sets the terminal dimensions.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.askView.SetDimensions(width, height)
	a.searchView.SetDimensions(width, height)
}
