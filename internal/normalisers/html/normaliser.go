package html

import (
	"context"
	stdhtml "html"
	"regexp"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/normalisers"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles HTML documents.
type Normaliser struct{}

// New creates a new HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise strips markup and returns one line per block of text.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	src := string(raw.Content)
	title := ""
	if m := titleTag.FindStringSubmatch(src); m != nil {
		title = strings.TrimSpace(stdhtml.UnescapeString(m[1]))
	}
	if title == "" {
		title = normalisers.TitleFromURI(raw.URI)
	}

	return &driven.NormaliseResult{
		Text:  Strip(src),
		Title: title,
	}, nil
}

var (
	titleTag = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

	// Elements whose content is never readable text. RE2 has no backreferences,
	// so each element gets its own expression.
	dropped = []*regexp.Regexp{
		regexp.MustCompile(`(?s)<!--.*?-->`),
		regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`),
		regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style>`),
		regexp.MustCompile(`(?is)<noscript\b[^>]*>.*?</noscript>`),
		regexp.MustCompile(`(?is)<template\b[^>]*>.*?</template>`),
		regexp.MustCompile(`(?is)<svg\b[^>]*>.*?</svg>`),
		regexp.MustCompile(`(?is)<head\b[^>]*>.*?</head>`),
	}

	// Tags that separate blocks of text.
	blockTag = regexp.MustCompile(`(?i)</?(p|div|br|hr|h[1-6]|li|ul|ol|tr|td|th|table|blockquote|pre|section|article|header|footer|nav|main)\b[^>]*/?>`)

	anyTag = regexp.MustCompile(`<[^>]+>`)
	spaces = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
)

// Strip converts HTML to plain text.
func Strip(src string) string {
	for _, re := range dropped {
		src = re.ReplaceAllString(src, "")
	}
	src = blockTag.ReplaceAllString(src, "\n")
	src = anyTag.ReplaceAllString(src, "")
	src = stdhtml.UnescapeString(src)
	src = spaces.ReplaceAllString(src, " ")

	lines := strings.Split(src, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
