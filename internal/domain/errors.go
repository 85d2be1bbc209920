package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrValidation signals invalid caller input (filename, extension, size).
	ErrValidation = errors.New("validation failed")
	// ErrAlreadyProcessing signals a concurrent processing run for the same document.
	ErrAlreadyProcessing = errors.New("document is already processing")

	// ErrUnsupportedFormat signals an unknown or unhandled file type.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrEmptyExtraction signals that extraction produced no text.
	ErrEmptyExtraction = errors.New("extraction produced no text")
	// ErrChunkingFailed signals that splitting produced no chunks.
	ErrChunkingFailed = errors.New("chunking produced no chunks")
	// ErrInvalidChunkConfig signals a degenerate chunk_size/chunk_overlap pair.
	ErrInvalidChunkConfig = errors.New("invalid chunk config")

	// ErrInvalidDeleteRequest signals a delete call with neither ids nor filter.
	ErrInvalidDeleteRequest = errors.New("delete requires exactly one of ids or filter")
	// ErrIndexBackend wraps vector store failures.
	ErrIndexBackend = errors.New("vector index backend error")

	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)

// ExtractionError wraps the underlying cause of a parse failure.
type ExtractionError struct {
	FileType string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.FileType, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// NewExtractionError creates an extraction error for the given file type.
func NewExtractionError(fileType string, err error) error {
	return &ExtractionError{FileType: fileType, Err: err}
}
