package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-rag/internal/normalisers"
)

// MIMEType is the Office Open XML word processing type.
const MIMEType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles DOCX documents.
type Normaliser struct{}

// New creates a new DOCX normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{MIMEType}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise extracts paragraph text from word/document.xml.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	zr, err := zip.NewReader(bytes.NewReader(raw.Content), int64(len(raw.Content)))
	if err != nil {
		return nil, fmt.Errorf("open docx archive: %w", domain.ErrInvalidInput)
	}

	body, err := readPart(zr, "word/document.xml")
	if err != nil {
		return nil, err
	}

	var doc document
	if len(body) > 0 {
		if err := xml.Unmarshal(body, &doc); err != nil {
			return nil, fmt.Errorf("parse document.xml: %w", domain.ErrInvalidInput)
		}
	}

	title := coreTitle(zr)
	if title == "" {
		title = normalisers.TitleFromURI(raw.URI)
	}

	return &driven.NormaliseResult{
		Text:  doc.text(),
		Title: title,
	}, nil
}

type document struct {
	Paragraphs []struct {
		Runs []struct {
			Text []string `xml:"t"`
		} `xml:"r"`
	} `xml:"body>p"`
}

func (d document) text() string {
	paras := make([]string, 0, len(d.Paragraphs))
	for _, p := range d.Paragraphs {
		var b strings.Builder
		for _, r := range p.Runs {
			for _, t := range r.Text {
				b.WriteString(t)
			}
		}
		paras = append(paras, b.String())
	}
	return strings.TrimSpace(strings.Join(paras, "\n"))
}

// readPart returns the bytes of a named archive member, or nil when absent.
func readPart(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, domain.ErrInvalidInput)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, domain.ErrInvalidInput)
		}
		return data, nil
	}
	return nil, nil
}

func coreTitle(zr *zip.Reader) string {
	data, err := readPart(zr, "docProps/core.xml")
	if err != nil || data == nil {
		return ""
	}
	var core struct {
		Title string `xml:"title"`
	}
	if err := xml.Unmarshal(data, &core); err != nil {
		return ""
	}
	return strings.TrimSpace(core.Title)
}
