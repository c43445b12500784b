// Package chunker provides the text segmentation policy used by document processing.
package chunker

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 0

// DefaultBoundaryWindow is the fraction of the chunk size searched backwards
// from the hard cut for a paragraph, sentence or word boundary.
const DefaultBoundaryWindow = 0.1

// Ensure Splitter implements the interface.
var _ driven.ChunkSplitter = (*Splitter)(nil)

// boundaries in order of preference. A cut is placed just after the separator.
var boundaries = []string{"\n\n", ". ", "! ", "? ", "\n", " "}

// Splitter segments text into windows of roughly chunk size characters,
// preferring to end a window on a paragraph, sentence or word boundary.
// Sizes count characters; offsets are byte offsets into the input text.
type Splitter struct {
	chunkSize int
	overlap   int
	window    float64
}

// Option configures the splitter.
type Option func(*Splitter)

// WithChunkSize sets the chunk size used when Split receives a non-positive size.
func WithChunkSize(size int) Option {
	return func(s *Splitter) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap used when Split receives a negative overlap.
func WithOverlap(overlap int) Option {
	return func(s *Splitter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// WithBoundaryWindow sets how far back, as a fraction of the chunk size,
// the splitter looks for a natural boundary. Zero disables boundary search.
func WithBoundaryWindow(fraction float64) Option {
	return func(s *Splitter) {
		if fraction >= 0 && fraction < 1 {
			s.window = fraction
		}
	}
}

// New creates a new splitter with the given options.
func New(opts ...Option) *Splitter {
	s := &Splitter{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
		window:    DefaultBoundaryWindow,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Split segments text into ordered spans. targetSize and overlap count
// characters (runes); span offsets are byte offsets into text.
// Each span after the first starts overlap characters before the previous
// span's end, so concatenating spans minus overlaps reconstructs text exactly.
func (s *Splitter) Split(text string, targetSize, overlap int) []domain.Span {
	if text == "" {
		return nil
	}
	if targetSize <= 0 {
		targetSize = s.chunkSize
	}
	if overlap < 0 {
		overlap = s.overlap
	}
	// Overlap must leave room for progress.
	if overlap >= targetSize {
		overlap = targetSize / 4
	}

	offsets := runeOffsets(text)
	n := len(offsets) - 1
	spans := make([]domain.Span, 0, n/(targetSize-overlap)+1)

	start := 0
	for start < n {
		end := n
		if n-start > targetSize {
			end = s.cut(text, offsets, start, start+targetSize)
		}

		spans = append(spans, domain.Span{
			Content:     text[offsets[start]:offsets[end]],
			StartOffset: offsets[start],
			EndOffset:   offsets[end],
		})

		if end == n {
			break
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return spans
}

// cut returns the end rune index for a window starting at rune start whose
// hard limit is rune limit.
func (s *Splitter) cut(text string, offsets []int, start, limit int) int {
	minEnd := limit - int(float64(limit-start)*s.window)
	if minEnd <= start || s.window == 0 {
		return limit
	}

	base := offsets[minEnd]
	region := text[base:offsets[limit]]
	for _, sep := range boundaries {
		if i := strings.LastIndex(region, sep); i >= 0 {
			// Separators are ASCII, so the byte after one starts a rune.
			at := base + i + len(sep)
			return sort.SearchInts(offsets, at)
		}
	}
	return limit
}

// runeOffsets returns the byte offset of every rune in text followed by len(text).
func runeOffsets(text string) []int {
	offsets := make([]int, 0, utf8.RuneCountInString(text)+1)
	for i := range text {
		offsets = append(offsets, i)
	}
	return append(offsets, len(text))
}
