// Package extract converts uploaded document bytes into plain text.
// One extractor per supported file type; the registry dispatches on the
// lowercase extension without the dot.
package extract

import (
	"context"
	"strings"

	"github.com/lattica-ai/ragline/internal/domain"
)

type extractFunc func(ctx context.Context, data []byte) (string, error)

// Extractor dispatches byte payloads to per-format text extractors.
type Extractor struct {
	formats map[string]extractFunc
}

// New creates an extractor with all built-in formats registered.
func New() *Extractor {
	e := &Extractor{formats: make(map[string]extractFunc)}
	e.formats["pdf"] = extractPDF
	e.formats["docx"] = extractDOCX
	e.formats["txt"] = extractText
	e.formats["md"] = extractText
	e.formats["csv"] = extractText
	return e
}

// Supports reports whether the file type has a registered extractor.
func (e *Extractor) Supports(fileType string) bool {
	_, ok := e.formats[strings.ToLower(fileType)]
	return ok
}

// Extract parses the payload and returns its plain text. Empty output is not
// an extractor failure; callers decide whether an empty document is fatal.
func (e *Extractor) Extract(ctx context.Context, data []byte, fileType string) (string, error) {
	fileType = strings.ToLower(fileType)

	fn, ok := e.formats[fileType]
	if !ok {
		return "", domain.ErrUnsupportedFormat
	}

	text, err := fn(ctx, data)
	if err != nil {
		return "", domain.NewExtractionError(fileType, err)
	}
	return text, nil
}
