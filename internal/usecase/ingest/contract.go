package ingest

import (
	"context"

	"github.com/lattica-ai/ragline/internal/domain"
	"github.com/lattica-ai/ragline/internal/vecindex"
)

// DocumentRepository is the storage contract for document records.
type DocumentRepository interface {
	Create(ctx context.Context, doc domain.Document) error
	Get(ctx context.Context, id string) (domain.Document, error)
	ListByCollection(ctx context.Context, collectionID string) ([]domain.Document, error)
	Update(ctx context.Context, doc domain.Document) error
	Delete(ctx context.Context, id string) error
}

// CollectionReader reads collections for existence checks and chunking config.
type CollectionReader interface {
	Get(ctx context.Context, id string) (domain.Collection, error)
}

// BlobStore stores original document payloads.
type BlobStore interface {
	Put(ctx context.Context, path string, data []byte) error
	Get(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
}

// Extractor converts payload bytes into plain text.
type Extractor interface {
	Extract(ctx context.Context, data []byte, fileType string) (string, error)
}

// Index is the vector store consumed by the pipeline.
type Index interface {
	EnsureCollection(ctx context.Context, collection string) error
	Add(ctx context.Context, collection string, chunks []domain.Chunk) ([]string, error)
	Delete(ctx context.Context, collection string, ids []string, filter map[string]string) error
	Search(ctx context.Context, collection, query string, k int, filter map[string]string) ([]vecindex.SearchHit, error)
}
