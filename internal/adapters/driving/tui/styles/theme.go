// Package styles provides the colour palette and lipgloss styles for the TUI.
package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// Relevance bands used to colour scores.
const (
	StrongRelevance = 0.8
	WeakRelevance   = 0.5
)

// Theme is the colour palette.
type Theme struct {
	Accent     lipgloss.Color
	Highlight  lipgloss.Color
	Text       lipgloss.Color
	Dim        lipgloss.Color
	Good       lipgloss.Color
	Caution    lipgloss.Color
	Bad        lipgloss.Color
	Frame      lipgloss.Color
	StatusFill lipgloss.Color

	// Per retrieval signal, so vector, keyword and fused results read apart.
	Vector  lipgloss.Color
	Keyword lipgloss.Color
	Hybrid  lipgloss.Color
}

// DefaultTheme returns the default palette.
func DefaultTheme() *Theme {
	return &Theme{
		Accent:     lipgloss.Color("#7C3AED"),
		Highlight:  lipgloss.Color("#06B6D4"),
		Text:       lipgloss.Color("#CDD6F4"),
		Dim:        lipgloss.Color("#6C7086"),
		Good:       lipgloss.Color("#A6E3A1"),
		Caution:    lipgloss.Color("#F9E2AF"),
		Bad:        lipgloss.Color("#F38BA8"),
		Frame:      lipgloss.Color("#45475A"),
		StatusFill: lipgloss.Color("#181825"),
		Vector:     lipgloss.Color("#89B4FA"),
		Keyword:    lipgloss.Color("#FAB387"),
		Hybrid:     lipgloss.Color("#CBA6F7"),
	}
}

// Styles holds the rendered styles built from a Theme.
type Styles struct {
	theme *Theme

	Title      lipgloss.Style
	Subtitle   lipgloss.Style
	Normal     lipgloss.Style
	Muted      lipgloss.Style
	Selected   lipgloss.Style
	Error      lipgloss.Style
	Success    lipgloss.Style
	Warning    lipgloss.Style
	InputField lipgloss.Style
	StatusBar  lipgloss.Style
	Help       lipgloss.Style
	Border     lipgloss.Style

	// Answer renders generated answer text.
	Answer lipgloss.Style

	signals map[domain.RetrievalMode]lipgloss.Style
}

// NewStyles builds styles from theme. A nil theme means DefaultTheme.
func NewStyles(theme *Theme) *Styles {
	if theme == nil {
		theme = DefaultTheme()
	}

	plain := lipgloss.NewStyle()
	return &Styles{
		theme:      theme,
		Title:      plain.Bold(true).Foreground(theme.Accent),
		Subtitle:   plain.Bold(true).Foreground(theme.Highlight),
		Normal:     plain.Foreground(theme.Text),
		Muted:      plain.Foreground(theme.Dim),
		Selected:   plain.Bold(true).Foreground(theme.Text).Background(theme.Accent),
		Error:      plain.Foreground(theme.Bad),
		Success:    plain.Foreground(theme.Good),
		Warning:    plain.Foreground(theme.Caution),
		InputField: plain.BorderStyle(lipgloss.RoundedBorder()).BorderForeground(theme.Frame).Padding(0, 1),
		StatusBar:  plain.Foreground(theme.Dim).Background(theme.StatusFill).Padding(0, 1),
		Help:       plain.Foreground(theme.Dim),
		Border:     plain.BorderStyle(lipgloss.RoundedBorder()).BorderForeground(theme.Frame),
		Answer:     plain.Foreground(theme.Text).PaddingLeft(2),
		signals: map[domain.RetrievalMode]lipgloss.Style{
			domain.RetrievalVector:  plain.Bold(true).Foreground(theme.Vector),
			domain.RetrievalKeyword: plain.Bold(true).Foreground(theme.Keyword),
			domain.RetrievalHybrid:  plain.Bold(true).Foreground(theme.Hybrid),
		},
	}
}

// DefaultStyles returns styles for the default theme.
func DefaultStyles() *Styles {
	return NewStyles(DefaultTheme())
}

// Theme returns the palette the styles were built from.
func (s *Styles) Theme() *Theme {
	return s.theme
}

// Signal returns the style for a retrieval mode or result signal.
// Unknown modes render muted.
func (s *Styles) Signal(mode domain.RetrievalMode) lipgloss.Style {
	if st, ok := s.signals[mode]; ok {
		return st
	}
	return s.Muted
}

// Relevance returns the style for a score: strong, middling or weak.
func (s *Styles) Relevance(score float64) lipgloss.Style {
	switch {
	case score >= StrongRelevance:
		return s.Success
	case score >= WeakRelevance:
		return s.Warning
	default:
		return s.Muted
	}
}
