// Package chunker splits extracted text into bounded, overlapping chunks
// with deterministic ids.
package chunker

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/lattica-ai/ragline/internal/domain"
)

// separators order matters: the splitter prefers the earliest separator
// that yields pieces under the size limit. CJK sentence terminators sit
// between newlines and latin sentence breaks so mixed-language documents
// split on sentence boundaries in both scripts.
var separators = []string{"\n\n", "\n", "。", "！", "？", ". ", "! ", "? ", " ", ""}

// Chunker splits document text recursively by separator priority.
type Chunker struct {
	size    int
	overlap int
}

// New validates the size/overlap pair and returns a chunker.
// Overlap must be strictly smaller than size or splitting cannot advance.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size %d: %w", size, domain.ErrInvalidChunkConfig)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d for size %d: %w", overlap, size, domain.ErrInvalidChunkConfig)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split chunks the text and stamps each piece with the document identity
// and its sequence position. Whitespace-only input yields ErrChunkingFailed.
func (c *Chunker) Split(documentID, documentName, text string) ([]domain.Chunk, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(c.size),
		textsplitter.WithChunkOverlap(c.overlap),
		textsplitter.WithSeparators(separators),
	)

	pieces, err := splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("split text: %w", err)
	}

	chunks := make([]domain.Chunk, 0, len(pieces))
	for _, piece := range pieces {
		if strings.TrimSpace(piece) == "" {
			continue
		}
		i := len(chunks)
		chunks = append(chunks, domain.Chunk{
			ID:           domain.ChunkID(documentID, i),
			DocumentID:   documentID,
			DocumentName: documentName,
			Index:        i,
			Text:         piece,
		})
	}

	if len(chunks) == 0 {
		return nil, domain.ErrChunkingFailed
	}
	return chunks, nil
}
