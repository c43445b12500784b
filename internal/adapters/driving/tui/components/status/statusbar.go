// Package status provides status bar components for the TUI.
package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// State represents the current view state for display.
type State string

const (
	StateReady   State = "ready"
	StateWorking State = "working"
	StateError   State = "error"
	StateResults State = "results"
)

// Bar displays status, the active retrieval mode and keybinding hints.
type Bar struct {
	styles  *styles.Styles
	keymap  *keymap.KeyMap
	state   State
	message string
	mode    string
	count   int
	width   int
}

// NewBar creates a new status bar component.
func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &Bar{
		styles: s,
		keymap: km,
		state:  StateReady,
		width:  80,
	}
}

// View renders the status bar.
func (s *Bar) View() string {
	left := s.renderLeft()
	right := s.renderRight()

	// Two cells go to the bar's horizontal padding
	padding := s.width - 2 - lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 1 {
		padding = 1
	}

	return s.styles.StatusBar.Width(s.width).Render(
		left + strings.Repeat(" ", padding) + right,
	)
}

func (s *Bar) renderLeft() string {
	var out string
	switch s.state {
	case StateWorking:
		msg := s.message
		if msg == "" {
			msg = "Working..."
		}
		out = s.styles.Muted.Render(msg)
	case StateError:
		if s.message != "" {
			out = s.styles.Error.Render(fmt.Sprintf("Error: %s", s.message))
		} else {
			out = s.styles.Error.Render("Error")
		}
	case StateResults:
		out = s.styles.Normal.Render(fmt.Sprintf("%d sources", s.count))
	default:
		out = s.styles.Muted.Render("Ready")
	}
	if s.mode != "" {
		out += " " + s.styles.Signal(domain.RetrievalMode(s.mode)).Render("["+s.mode+"]")
	}
	return out
}

func (s *Bar) renderRight() string {
	bindings := s.keymap.ShortHelp()
	if s.state == StateResults && s.count > 0 {
		bindings = s.keymap.ResultsHelp()
	}

	hints := make([]string, 0, len(bindings))
	for _, b := range bindings {
		hints = append(hints, hintFor(b))
	}
	return s.styles.Muted.Render(strings.Join(hints, " | "))
}

func hintFor(b key.Binding) string {
	h := b.Help()
	return fmt.Sprintf("%s: %s", h.Key, h.Desc)
}

// SetState sets the current state.
func (s *Bar) SetState(state State) {
	s.state = state
}

// State returns the current state.
func (s *Bar) State() State {
	return s.state
}

// SetMessage sets a custom message.
func (s *Bar) SetMessage(message string) {
	s.message = message
}

// Message returns the current message.
func (s *Bar) Message() string {
	return s.message
}

// SetMode sets the retrieval mode shown next to the state.
func (s *Bar) SetMode(mode string) {
	s.mode = mode
}

// SetCount sets the number of sources or results on screen.
func (s *Bar) SetCount(count int) {
	s.count = count
}

// Count returns the current count.
func (s *Bar) Count() int {
	return s.count
}

// SetWidth sets the status bar width.
func (s *Bar) SetWidth(width int) {
	s.width = width
}

// Width returns the current width.
func (s *Bar) Width() int {
	return s.width
}

// Clear resets the status bar to default state. The mode is kept.
func (s *Bar) Clear() {
	s.state = StateReady
	s.message = ""
	s.count = 0
}
