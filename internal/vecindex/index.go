// Package vecindex provides a uniform interface over embedding-backed chunk
// stores. Backends differ in deletion and filtering support; the adapters hide
// those differences so callers never need to know which strategy is used.
package vecindex

import (
	"context"

	"github.com/lattica-ai/ragline/internal/domain"
)

// EnumerationLimit bounds an empty-query enumeration of a collection. It is
// effectively unbounded for the chunk-listing use case.
const EnumerationLimit = 10000

// SearchHit is a retrieved chunk with its backend-defined similarity score.
// Scores are monotonic and comparable within one backend only.
type SearchHit struct {
	Chunk domain.Chunk
	Score float64
}

// Index is the backend-agnostic vector store contract.
//
// Mutating calls are durable when they return: a successful Add or Delete may
// be treated as committed by the caller.
type Index interface {
	// EnsureCollection creates the collection if absent. Idempotent.
	EnsureCollection(ctx context.Context, collection string) error

	// Add embeds chunk texts and stores vector + metadata under each chunk's
	// explicit id, so later targeted deletion is possible. Returns the ids.
	Add(ctx context.Context, collection string, chunks []domain.Chunk) ([]string, error)

	// Delete removes chunks by explicit ids or by metadata filter. Exactly one
	// of ids/filter must be supplied, else domain.ErrInvalidDeleteRequest.
	// A non-matching filter is a no-op, not an error.
	Delete(ctx context.Context, collection string, ids []string, filter map[string]string) error

	// Search runs a similarity search. An empty query with a metadata-only
	// filter enumerates matching chunks in sequence order instead.
	Search(ctx context.Context, collection, query string, k int, filter map[string]string) ([]SearchHit, error)

	// DropCollection removes the whole collection namespace. Missing
	// collections are ignored.
	DropCollection(ctx context.Context, collection string) error
}
