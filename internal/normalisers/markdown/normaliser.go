package markdown

import (
	"context"
	"regexp"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/normalisers"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles Markdown documents.
type Normaliser struct{}

// New creates a new Markdown normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise strips Markdown syntax and keeps the readable text.
// Fenced code is kept as text since it is often what a question is about.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	src := strings.ReplaceAll(string(raw.Content), "\r\n", "\n")
	title := firstHeading(src)
	if title == "" {
		title = normalisers.TitleFromURI(raw.URI)
	}

	return &driven.NormaliseResult{
		Text:  Strip(src),
		Title: title,
	}, nil
}

type rewrite struct {
	re   *regexp.Regexp
	with string
}

// Rewrites applied in order.
var rewrites = []rewrite{
	{regexp.MustCompile("(?m)^```[^\n]*$"), ""},
	{regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`), "$1"},
	{regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`), "$1"},
	{regexp.MustCompile("`([^`]+)`"), "$1"},
	{regexp.MustCompile(`(?m)^[ \t]{0,3}#{1,6}\s+`), ""},
	{regexp.MustCompile(`(?m)^[ \t]{0,3}>\s?`), ""},
	{regexp.MustCompile(`(?m)^[ \t]{0,3}([-*_]\s*){3,}$`), ""},
	{regexp.MustCompile(`(?m)^([ \t]*)[-*+]\s+`), "$1"},
	{regexp.MustCompile(`(?m)^([ \t]*)\d+[.)]\s+`), "$1"},
	{regexp.MustCompile(`(\*\*|__)(\S(?:.*?\S)?)(\*\*|__)`), "$2"},
	{regexp.MustCompile(`(^|[^\w*])[*_](\S(?:[^*_]*?\S)?)[*_]`), "$1$2"},
	{regexp.MustCompile(`~~(.+?)~~`), "$1"},
	{regexp.MustCompile(`\n{3,}`), "\n\n"},
}

var headingLine = regexp.MustCompile(`(?m)^[ \t]{0,3}#\s+(.+?)[ \t]*#*[ \t]*$`)

// Strip converts Markdown to plain text.
func Strip(src string) string {
	for _, rw := range rewrites {
		src = rw.re.ReplaceAllString(src, rw.with)
	}
	return strings.TrimSpace(src)
}

func firstHeading(src string) string {
	if m := headingLine.FindStringSubmatch(src); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}
