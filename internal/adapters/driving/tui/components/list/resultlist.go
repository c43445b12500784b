// Package list provides list display components for the TUI.
package list

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// Item is one row: a cited source or a retrieved chunk.
type Item struct {
	Title   string
	Preview string
	Score   float64
	Tag     string
}

// FromSources converts answer sources to list items.
func FromSources(sources []domain.Source) []Item {
	items := make([]Item, len(sources))
	for i, s := range sources {
		items[i] = Item{Title: s.Title, Preview: s.Snippet, Score: s.Relevance}
	}
	return items
}

// FromResults converts retrieval results to list items.
func FromResults(results []domain.RetrievalResult) []Item {
	items := make([]Item, len(results))
	for i, r := range results {
		title := r.Metadata.DocumentName
		if title == "" {
			title = r.DocumentID
		}
		items[i] = Item{
			Title:   fmt.Sprintf("%s #%d", title, r.ChunkIndex),
			Preview: r.Content,
			Score:   r.Score,
			Tag:     string(r.Source),
		}
	}
	return items
}

// ResultList displays items in a navigable list.
type ResultList struct {
	items    []Item
	header   string
	selected int
	styles   *styles.Styles
	width    int
	height   int
}

// NewResultList creates a new result list component with the given header.
func NewResultList(s *styles.Styles, header string) *ResultList {
	if s == nil {
		s = styles.DefaultStyles()
	}

	return &ResultList{
		header: header,
		styles: s,
		width:  80,
		height: 10,
	}
}

// Update handles list navigation messages.
func (r *ResultList) Update(msg tea.Msg) (*ResultList, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		//nolint:exhaustive // handling only relevant key types
		switch msg.Type {
		case tea.KeyUp:
			r.MoveUp()
		case tea.KeyDown:
			r.MoveDown()
		default:
		}
	}
	return r, nil
}

// View renders the list.
func (r *ResultList) View() string {
	if len(r.items) == 0 {
		return ""
	}

	lines := make([]string, 0, len(r.items)*2+2)
	lines = append(lines, r.styles.Subtitle.Render(fmt.Sprintf("%s (%d)", r.header, len(r.items))), "")

	// Each item takes two lines plus a separator
	visibleCount := (r.height - 2) / 3
	if visibleCount < 1 {
		visibleCount = 1
	}

	start := 0
	if r.selected >= visibleCount {
		start = r.selected - visibleCount + 1
	}
	end := min(start+visibleCount, len(r.items))

	for i := start; i < end; i++ {
		lines = append(lines, r.renderItem(i, &r.items[i]))
	}

	return strings.Join(lines, "\n")
}

func (r *ResultList) renderItem(index int, item *Item) string {
	indicator := "  "
	if index == r.selected {
		indicator = "> "
	}

	maxTitleLen := max(r.width-24, 10)
	title := clip(item.Title, maxTitleLen)
	if title == "" {
		title = "(Untitled)"
	}

	score := fmt.Sprintf("%.2f", item.Score)

	var titleLine string
	if index == r.selected {
		if item.Tag != "" {
			score += " " + item.Tag
		}
		titleLine = r.styles.Selected.Render(fmt.Sprintf("%s%-*s  %s", indicator, maxTitleLen, title, score))
	} else {
		titleLine = r.styles.Normal.Render(fmt.Sprintf("%s%-*s  ", indicator, maxTitleLen, title)) +
			r.styles.Relevance(item.Score).Render(score)
		if item.Tag != "" {
			titleLine += " " + r.styles.Signal(domain.RetrievalMode(item.Tag)).Render(item.Tag)
		}
	}

	preview := clip(strings.Join(strings.Fields(item.Preview), " "), max(r.width-6, 20))
	return titleLine + "\n" + r.styles.Muted.Render("    "+preview)
}

// clip shortens s to n runes, ending in "..." when cut.
func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

// SetItems replaces the list contents and resets the selection.
func (r *ResultList) SetItems(items []Item) {
	r.items = items
	r.selected = 0
}

// Items returns the current items.
func (r *ResultList) Items() []Item {
	return r.items
}

// Selected returns the index of the selected item.
func (r *ResultList) Selected() int {
	return r.selected
}

// MoveUp moves selection up.
func (r *ResultList) MoveUp() {
	if r.selected > 0 {
		r.selected--
	}
}

// MoveDown moves selection down.
func (r *ResultList) MoveDown() {
	if r.selected < len(r.items)-1 {
		r.selected++
	}
}

// SetDimensions sets the component dimensions.
func (r *ResultList) SetDimensions(width, height int) {
	r.width = width
	r.height = height
}

// Count returns the number of items.
func (r *ResultList) Count() int {
	return len(r.items)
}
