// Package redis adapts the Redis FT.SEARCH store to vecindex.Index.
//
// The backend has no delete-by-filter primitive, so filter deletion is a
// query for matching keys followed by a multi-key DEL. Chunks are stored as
// hashes under one key prefix per collection, with an HNSW vector field and
// TAG fields for metadata filtering.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/lattica-ai/ragline/internal/db"
	"github.com/lattica-ai/ragline/internal/domain"
	"github.com/lattica-ai/ragline/internal/vecindex"
)

const fieldText = "text"

// Options tune index creation and key layout.
type Options struct {
	// KeyPrefix namespaces all keys and index names, e.g. "ragline:".
	KeyPrefix string
	// VectorDim is the embedding dimensionality, required at index creation.
	VectorDim int
	// HNSW construction parameters. Zero values fall back to server defaults.
	HNSWM           int
	HNSWEFConstruct int
}

// Index is the Redis-backed vector index.
type Index struct {
	store    db.Store
	embedder domain.Embedder
	opts     Options
}

var _ vecindex.Index = (*Index)(nil)

// New creates a Redis-backed index over the given store.
func New(store db.Store, embedder domain.Embedder, opts Options) *Index {
	return &Index{store: store, embedder: embedder, opts: opts}
}

func (ix *Index) indexName(collection string) string {
	return ix.opts.KeyPrefix + "idx:" + collection
}

func (ix *Index) keyPrefix(collection string) string {
	return ix.opts.KeyPrefix + collection + ":"
}

func (ix *Index) key(collection, chunkID string) string {
	return ix.keyPrefix(collection) + chunkID
}

// EnsureCollection creates the FT index for the collection if absent.
func (ix *Index) EnsureCollection(ctx context.Context, collection string) error {
	name := ix.indexName(collection)

	exists, err := ix.store.IndexExists(ctx, name)
	if err != nil {
		return fmt.Errorf("probe index %s: %w: %w", name, domain.ErrIndexBackend, err)
	}
	if exists {
		return nil
	}

	def := &db.IndexDefinition{
		Name:     name,
		Prefixes: []string{ix.keyPrefix(collection)},
		Fields: []db.IndexField{
			{Name: domain.MetaDocumentID, Type: db.IndexFieldTag},
			{Name: domain.MetaChunkID, Type: db.IndexFieldTag},
			{Name: domain.MetaChunkIndex, Type: db.IndexFieldNumeric},
			{
				Name:              "vector",
				Type:              db.IndexFieldVector,
				VectorAlgo:        db.VectorHNSW,
				VectorDistance:    db.DistanceCosine,
				VectorDim:         ix.opts.VectorDim,
				VectorM:           ix.opts.HNSWM,
				VectorEFConstruct: ix.opts.HNSWEFConstruct,
			},
		},
	}

	if err := ix.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w: %w", name, domain.ErrIndexBackend, err)
	}
	return nil
}

// Add embeds chunks and writes them as hashes in one pipelined round-trip.
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

	items := make([]db.HashSetItem, len(chunks))
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		fields := c.Metadata()
		fields[fieldText] = c.Text
		fields["vector"] = db.VectorBytes(embedded.Embeddings[i])
		items[i] = db.HashSetItem{Key: ix.key(collection, c.ID), Fields: fields}
		ids[i] = c.ID
	}

	if err := ix.store.HSetMulti(ctx, items); err != nil {
		return nil, fmt.Errorf("store chunks: %w: %w", domain.ErrIndexBackend, err)
	}
	return ids, nil
}

// Delete removes chunks by ids or by metadata filter.
func (ix *Index) Delete(ctx context.Context, collection string, ids []string, filter map[string]string) error {
	if (len(ids) == 0) == (len(filter) == 0) {
		return domain.ErrInvalidDeleteRequest
	}

	var keys []string
	if len(ids) > 0 {
		keys = make([]string, len(ids))
		for i, id := range ids {
			keys[i] = ix.key(collection, id)
		}
	} else {
		matched, err := ix.matchKeys(ctx, collection, filter)
		if err != nil {
			return err
		}
		if len(matched) == 0 {
			return nil
		}
		keys = matched
	}

	if err := ix.store.DelMulti(ctx, keys); err != nil {
		return fmt.Errorf("delete chunks: %w: %w", domain.ErrIndexBackend, err)
	}
	return nil
}

// Search runs a KNN query, or enumerates by filter when the query is empty.
func (ix *Index) Search(
	ctx context.Context, collection, query string, k int, filter map[string]string,
) ([]vecindex.SearchHit, error) {
	if query == "" {
		return ix.enumerate(ctx, collection, k, filter)
	}

	res, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	result, err := ix.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    ix.indexName(collection),
		Tags:         filter,
		Vector:       res.Embedding,
		K:            k,
		ReturnFields: returnFields(),
	})
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("knn search: %w: %w", domain.ErrIndexBackend, err)
	}

	hits := make([]vecindex.SearchHit, 0, len(result.Entries))
	for _, entry := range result.Entries {
		hits = append(hits, vecindex.SearchHit{
			Chunk: chunkFromFields(entry.Fields),
			Score: entry.Score,
		})
	}
	return hits, nil
}

// DropCollection drops the FT index together with its indexed documents.
func (ix *Index) DropCollection(ctx context.Context, collection string) error {
	err := ix.store.DropIndex(ctx, ix.indexName(collection), true)
	if err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index: %w: %w", domain.ErrIndexBackend, err)
	}
	return nil
}

func (ix *Index) enumerate(
	ctx context.Context, collection string, k int, filter map[string]string,
) ([]vecindex.SearchHit, error) {
	limit := k
	if limit <= 0 || limit > vecindex.EnumerationLimit {
		limit = vecindex.EnumerationLimit
	}

	result, err := ix.store.SearchList(
		ctx, ix.indexName(collection), filterQuery(filter), 0, limit, returnFields(),
	)
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("enumerate chunks: %w: %w", domain.ErrIndexBackend, err)
	}

	hits := make([]vecindex.SearchHit, 0, len(result.Entries))
	for _, entry := range result.Entries {
		hits = append(hits, vecindex.SearchHit{Chunk: chunkFromFields(entry.Fields)})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Chunk.Index < hits[j].Chunk.Index })
	return hits, nil
}

// matchKeys resolves a metadata filter to concrete keys for deletion.
func (ix *Index) matchKeys(ctx context.Context, collection string, filter map[string]string) ([]string, error) {
	result, err := ix.store.SearchList(
		ctx, ix.indexName(collection), filterQuery(filter),
		0, vecindex.EnumerationLimit, []string{domain.MetaChunkID},
	)
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve filter: %w: %w", domain.ErrIndexBackend, err)
	}

	keys := make([]string, 0, len(result.Entries))
	for _, entry := range result.Entries {
		keys = append(keys, entry.Key)
	}
	return keys, nil
}

func filterQuery(filter map[string]string) string {
	if q := db.BuildTagFilters(filter); q != "" {
		return q
	}
	return "*"
}

func returnFields() []string {
	return []string{
		fieldText,
		domain.MetaDocumentID,
		domain.MetaDocumentName,
		domain.MetaChunkIndex,
		domain.MetaChunkID,
	}
}

func chunkFromFields(fields map[string]string) domain.Chunk {
	idx, _ := strconv.Atoi(fields[domain.MetaChunkIndex])
	return domain.Chunk{
		ID:           fields[domain.MetaChunkID],
		DocumentID:   fields[domain.MetaDocumentID],
		DocumentName: fields[domain.MetaDocumentName],
		Index:        idx,
		Text:         fields[fieldText],
	}
}
