// Package collection manages collection lifecycle, including the cascade
// that removes a collection's documents, blobs and vector namespace.
package collection

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lattica-ai/ragline/internal/domain"
)

// Service handles collection CRUD.
type Service struct {
	repo  Repository
	docs  DocumentRepository
	blobs BlobStore
	index Index
	log   *zap.Logger
}

// New creates a collection service.
func New(repo Repository, docs DocumentRepository, blobs BlobStore, index Index, log *zap.Logger) *Service {
	return &Service{
		repo:  repo,
		docs:  docs,
		blobs: blobs,
		index: index,
		log:   log.Named("collection"),
	}
}

// CreateParams are the caller-supplied collection attributes.
type CreateParams struct {
	Name         string
	Description  string
	ChunkSize    int
	ChunkOverlap int
}

// Create validates params, fills chunking defaults and stores the collection.
func (s *Service) Create(ctx context.Context, p CreateParams) (domain.Collection, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return domain.Collection{}, fmt.Errorf("empty collection name: %w", domain.ErrValidation)
	}
	if p.ChunkSize < 0 || p.ChunkOverlap < 0 {
		return domain.Collection{}, fmt.Errorf("negative chunk parameters: %w", domain.ErrValidation)
	}

	now := time.Now().UTC()
	col := domain.Collection{
		ID:           uuid.NewString(),
		Name:         name,
		Description:  strings.TrimSpace(p.Description),
		ChunkSize:    p.ChunkSize,
		ChunkOverlap: p.ChunkOverlap,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	col.ApplyDefaults()

	// Validated after defaulting: an explicit size may combine with the
	// default overlap.
	if col.ChunkOverlap >= col.ChunkSize {
		return domain.Collection{}, fmt.Errorf(
			"chunk overlap %d >= size %d: %w", col.ChunkOverlap, col.ChunkSize, domain.ErrInvalidChunkConfig)
	}

	if err := s.repo.Create(ctx, col); err != nil {
		return domain.Collection{}, fmt.Errorf("create collection: %w", err)
	}
	return col, nil
}

// Get returns a collection by id.
func (s *Service) Get(ctx context.Context, id string) (domain.Collection, error) {
	col, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Collection{}, fmt.Errorf("get collection: %w", err)
	}
	return col, nil
}

// List returns all collections.
func (s *Service) List(ctx context.Context) ([]domain.Collection, error) {
	cols, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return cols, nil
}

// UpdateParams are the mutable collection attributes. Nil means unchanged.
type UpdateParams struct {
	Name        *string
	Description *string
}

// Update renames or re-describes a collection. Chunking parameters are
// immutable after creation: already-indexed documents were chunked with them.
func (s *Service) Update(ctx context.Context, id string, p UpdateParams) (domain.Collection, error) {
	col, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Collection{}, fmt.Errorf("get collection: %w", err)
	}

	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return domain.Collection{}, fmt.Errorf("empty collection name: %w", domain.ErrValidation)
		}
		col.Name = name
	}
	if p.Description != nil {
		col.Description = strings.TrimSpace(*p.Description)
	}
	col.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, col); err != nil {
		return domain.Collection{}, fmt.Errorf("update collection: %w", err)
	}
	return col, nil
}

// Delete removes the collection and everything derived from it: document
// records, blobs and the vector namespace. Auxiliary failures are logged;
// only record deletions are hard errors.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return fmt.Errorf("get collection: %w", err)
	}

	docs, err := s.docs.ListByCollection(ctx, id)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}

	for _, doc := range docs {
		if err := s.blobs.Delete(ctx, doc.BlobPath); err != nil {
			s.log.Warn("delete blob failed during cascade",
				zap.String("blob_path", doc.BlobPath), zap.Error(err))
		}
		if err := s.docs.Delete(ctx, doc.ID); err != nil {
			return fmt.Errorf("delete document %s: %w", doc.ID, err)
		}
	}

	if err := s.index.DropCollection(ctx, domain.VectorCollectionName(id)); err != nil {
		s.log.Warn("drop vector collection failed",
			zap.String("collection_id", id), zap.Error(err))
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete collection record: %w", err)
	}
	return nil
}
