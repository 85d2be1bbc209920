// Package memory implements vecindex.Index in process memory. It is the
// local backend for single-node deployments and the reference backend in
// tests. Filter deletion is native here.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/lattica-ai/ragline/internal/domain"
	"github.com/lattica-ai/ragline/internal/vecindex"
)

type record struct {
	chunk  domain.Chunk
	vector []float32
}

// Index is an in-memory vector index with cosine similarity search.
type Index struct {
	embedder domain.Embedder

	mu          sync.RWMutex
	collections map[string]map[string]record // collection -> chunk id -> record
}

var _ vecindex.Index = (*Index)(nil)

// New creates an in-memory index using the given embedder.
func New(embedder domain.Embedder) *Index {
	return &Index{
		embedder:    embedder,
		collections: make(map[string]map[string]record),
	}
}

// EnsureCollection creates the collection map if absent.
func (ix *Index) EnsureCollection(_ context.Context, collection string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, ok := ix.collections[collection]; !ok {
		ix.collections[collection] = make(map[string]record)
	}
	return nil
}

// Add embeds and stores chunks under their explicit ids.
func (ix *Index) Add(ctx context.Context, collection string, chunks []domain.Chunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	embedded, err := domain.EmbedAll(ctx, ix.embedder, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(embedded.Embeddings) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks: %w",
			len(embedded.Embeddings), len(chunks), domain.ErrIndexBackend)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	coll, ok := ix.collections[collection]
	if !ok {
		coll = make(map[string]record)
		ix.collections[collection] = coll
	}

	ids := make([]string, len(chunks))
	for i, c := range chunks {
		coll[c.ID] = record{chunk: c, vector: embedded.Embeddings[i]}
		ids[i] = c.ID
	}
	return ids, nil
}

// Delete removes chunks by ids or by metadata filter.
func (ix *Index) Delete(_ context.Context, collection string, ids []string, filter map[string]string) error {
	if (len(ids) == 0) == (len(filter) == 0) {
		return domain.ErrInvalidDeleteRequest
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	coll, ok := ix.collections[collection]
	if !ok {
		return nil
	}

	if len(ids) > 0 {
		for _, id := range ids {
			delete(coll, id)
		}
		return nil
	}

	for id, rec := range coll {
		if matches(rec.chunk, filter) {
			delete(coll, id)
		}
	}
	return nil
}

// Search runs cosine similarity search, or enumerates by filter when the
// query is empty.
func (ix *Index) Search(
	ctx context.Context, collection, query string, k int, filter map[string]string,
) ([]vecindex.SearchHit, error) {
	if query == "" {
		return ix.enumerate(collection, k, filter), nil
	}

	res, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	coll := ix.collections[collection]
	hits := make([]vecindex.SearchHit, 0, k)
	for _, rec := range coll {
		if !matches(rec.chunk, filter) {
			continue
		}
		hits = append(hits, vecindex.SearchHit{
			Chunk: rec.chunk,
			Score: cosine(res.Embedding, rec.vector),
		})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// DropCollection removes the collection map.
func (ix *Index) DropCollection(_ context.Context, collection string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.collections, collection)
	return nil
}

// enumerate returns filter-matching chunks in sequence order.
func (ix *Index) enumerate(collection string, k int, filter map[string]string) []vecindex.SearchHit {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	coll := ix.collections[collection]
	hits := make([]vecindex.SearchHit, 0, len(coll))
	for _, rec := range coll {
		if matches(rec.chunk, filter) {
			hits = append(hits, vecindex.SearchHit{Chunk: rec.chunk})
		}
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Chunk.Index < hits[j].Chunk.Index })
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func matches(c domain.Chunk, filter map[string]string) bool {
	if len(filter) == 0 {
		return true
	}
	meta := c.Metadata()
	for k, v := range filter {
		if meta[k] != v {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
