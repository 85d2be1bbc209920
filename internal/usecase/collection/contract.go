package collection

import (
	"context"

	"github.com/lattica-ai/ragline/internal/domain"
)

// Repository is the storage contract for collection records.
type Repository interface {
	Create(ctx context.Context, col domain.Collection) error
	Get(ctx context.Context, id string) (domain.Collection, error)
	List(ctx context.Context) ([]domain.Collection, error)
	Update(ctx context.Context, col domain.Collection) error
	Delete(ctx context.Context, id string) error
}

// DocumentRepository lists and removes the collection's document records
// during cascade deletion.
type DocumentRepository interface {
	ListByCollection(ctx context.Context, collectionID string) ([]domain.Document, error)
	Delete(ctx context.Context, id string) error
}

// BlobStore removes original payloads during cascade deletion.
type BlobStore interface {
	Delete(ctx context.Context, path string) error
}

// Index drops the collection's vector namespace.
type Index interface {
	DropCollection(ctx context.Context, collection string) error
}
