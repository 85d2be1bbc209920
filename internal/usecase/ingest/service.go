// Package ingest orchestrates the document processing pipeline: upload,
// asynchronous extract-chunk-index runs, and deletion.
//
// Status is the contract with API consumers: pending after upload,
// processing while a run holds the document's lease, then completed or
// failed. Only this package mutates document status.
package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/lattica-ai/ragline/internal/blob"
	"github.com/lattica-ai/ragline/internal/chunker"
	"github.com/lattica-ai/ragline/internal/domain"
	"github.com/lattica-ai/ragline/internal/logger"
	"github.com/lattica-ai/ragline/internal/metrics"
	"github.com/lattica-ai/ragline/internal/vecindex"
)

// Config bounds uploads and sizes the worker pool.
type Config struct {
	Workers           int
	MaxFileSizeBytes  int64
	AllowedExtensions []string
}

// Service implements the ingestion pipeline.
type Service struct {
	docs      DocumentRepository
	colls     CollectionReader
	blobs     BlobStore
	extractor Extractor
	index     Index

	pool    *ants.Pool
	leases  *leaseRegistry
	allowed map[string]struct{}
	maxSize int64
	log     *zap.Logger
}

// New creates the ingestion service and its worker pool.
func New(
	docs DocumentRepository,
	colls CollectionReader,
	blobs BlobStore,
	extractor Extractor,
	index Index,
	cfg Config,
	log *zap.Logger,
) (*Service, error) {
	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	allowed := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(ext)] = struct{}{}
	}

	return &Service{
		docs:      docs,
		colls:     colls,
		blobs:     blobs,
		extractor: extractor,
		index:     index,
		pool:      pool,
		leases:    newLeaseRegistry(),
		allowed:   allowed,
		maxSize:   cfg.MaxFileSizeBytes,
		log:       log.Named("ingest"),
	}, nil
}

// Close stops the worker pool. Queued runs are dropped.
func (s *Service) Close() {
	s.pool.Release()
}

// Upload validates and stores a new document in pending state.
// The blob is written before the record; a record failure rolls the blob back
// so no orphan payloads accumulate.
func (s *Service) Upload(
	ctx context.Context, collectionID, filename string, data []byte,
) (domain.Document, error) {
	if _, err := s.colls.Get(ctx, collectionID); err != nil {
		return domain.Document{}, fmt.Errorf("get collection: %w", err)
	}

	filename = strings.TrimSpace(filepath.Base(filename))
	if filename == "" || filename == "." {
		return domain.Document{}, fmt.Errorf("empty filename: %w", domain.ErrValidation)
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if _, ok := s.allowed[ext]; !ok {
		return domain.Document{}, fmt.Errorf("file type %q: %w", ext, domain.ErrUnsupportedFormat)
	}

	if len(data) == 0 {
		return domain.Document{}, fmt.Errorf("empty file: %w", domain.ErrValidation)
	}
	if s.maxSize > 0 && int64(len(data)) > s.maxSize {
		return domain.Document{}, fmt.Errorf(
			"file size %d exceeds limit %d: %w", len(data), s.maxSize, domain.ErrValidation)
	}

	now := time.Now().UTC()
	doc := domain.Document{
		ID:           uuid.NewString(),
		CollectionID: collectionID,
		Name:         filename,
		FileType:     ext,
		SizeBytes:    int64(len(data)),
		Status:       domain.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	doc.BlobPath = blob.Path(collectionID, doc.ID, filename)

	if err := s.blobs.Put(ctx, doc.BlobPath, data); err != nil {
		return domain.Document{}, fmt.Errorf("store blob: %w", err)
	}

	if err := s.docs.Create(ctx, doc); err != nil {
		if cleanupErr := s.blobs.Delete(ctx, doc.BlobPath); cleanupErr != nil {
			s.log.Warn("orphan blob cleanup failed",
				zap.String("blob_path", doc.BlobPath), zap.Error(cleanupErr))
		}
		return domain.Document{}, fmt.Errorf("create document record: %w", err)
	}

	return doc, nil
}

// Submit queues a processing run for the document. The lease is taken here
// so a concurrent submit fails fast with ErrAlreadyProcessing instead of
// queueing a duplicate run.
func (s *Service) Submit(ctx context.Context, documentID string) error {
	doc, err := s.docs.Get(ctx, documentID)
	if err != nil {
		return fmt.Errorf("get document: %w", err)
	}

	if !s.leases.acquire(doc.ID) {
		return fmt.Errorf("document %s: %w", doc.ID, domain.ErrAlreadyProcessing)
	}

	err = s.pool.Submit(func() {
		defer s.leases.release(doc.ID)
		// Detached from the request context: the run outlives the HTTP call.
		runCtx := logger.ContextWithLogger(context.Background(), s.log)
		s.run(runCtx, doc.ID)
	})
	if err != nil {
		s.leases.release(doc.ID)
		return fmt.Errorf("queue processing run: %w", err)
	}
	return nil
}

// run executes one full processing pass for a document.
func (s *Service) run(ctx context.Context, documentID string) {
	start := time.Now()
	log := s.log.With(zap.String("document_id", documentID))

	doc, err := s.docs.Get(ctx, documentID)
	if err != nil {
		log.Error("load document for processing", zap.Error(err))
		metrics.IngestRunsTotal.WithLabelValues("failed").Inc()
		return
	}

	coll, err := s.colls.Get(ctx, doc.CollectionID)
	if err != nil {
		s.fail(ctx, doc, start, fmt.Errorf("get collection: %w", err))
		return
	}
	coll.ApplyDefaults()

	doc.Status = domain.StatusProcessing
	doc.ErrorMessage = ""
	doc.UpdatedAt = time.Now().UTC()
	if err := s.docs.Update(ctx, doc); err != nil {
		log.Error("mark document processing", zap.Error(err))
		metrics.IngestRunsTotal.WithLabelValues("failed").Inc()
		return
	}

	chunks, err := s.pipeline(ctx, doc, coll)
	if err != nil {
		s.fail(ctx, doc, start, err)
		return
	}

	doc.Status = domain.StatusCompleted
	doc.ChunkCount = len(chunks)
	doc.ErrorMessage = ""
	doc.UpdatedAt = time.Now().UTC()
	if err := s.docs.Update(ctx, doc); err != nil {
		log.Error("mark document completed", zap.Error(err))
		metrics.IngestRunsTotal.WithLabelValues("failed").Inc()
		return
	}

	metrics.IngestRunsTotal.WithLabelValues("completed").Inc()
	metrics.IngestRunDuration.WithLabelValues("completed").Observe(time.Since(start).Seconds())
	metrics.IngestChunksIndexed.Add(float64(len(chunks)))
	log.Info("document processed",
		zap.Int("chunks", len(chunks)),
		zap.Duration("duration", time.Since(start)))
}

// pipeline runs extract, chunk and index for one document.
func (s *Service) pipeline(
	ctx context.Context, doc domain.Document, coll domain.Collection,
) ([]domain.Chunk, error) {
	collection := domain.VectorCollectionName(doc.CollectionID)

	// Remove vectors from any previous run first. Failure here is tolerable:
	// re-adding under the same deterministic ids overwrites most of them, so
	// we log, count and proceed.
	err := s.index.Delete(ctx, collection, nil, map[string]string{domain.MetaDocumentID: doc.ID})
	if err != nil {
		metrics.IngestStaleCleanupFailures.Inc()
		s.log.Warn("stale vector cleanup failed",
			zap.String("document_id", doc.ID), zap.Error(err))
	}

	data, err := s.blobs.Get(ctx, doc.BlobPath)
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}

	text, err := s.extractor.Extract(ctx, data, doc.FileType)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyExtraction
	}

	ck, err := chunker.New(coll.ChunkSize, coll.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	chunks, err := ck.Split(doc.ID, doc.Name, text)
	if err != nil {
		return nil, err
	}

	if err := s.index.EnsureCollection(ctx, collection); err != nil {
		return nil, err
	}
	if _, err := s.index.Add(ctx, collection, chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

// fail records a terminal failed state with a bounded error message.
func (s *Service) fail(ctx context.Context, doc domain.Document, start time.Time, cause error) {
	s.log.Warn("document processing failed",
		zap.String("document_id", doc.ID), zap.Error(cause))

	doc.Status = domain.StatusFailed
	doc.ChunkCount = 0
	doc.ErrorMessage = domain.TruncateError(cause.Error())
	doc.UpdatedAt = time.Now().UTC()
	if err := s.docs.Update(ctx, doc); err != nil {
		s.log.Error("mark document failed",
			zap.String("document_id", doc.ID), zap.Error(err))
	}

	metrics.IngestRunsTotal.WithLabelValues("failed").Inc()
	metrics.IngestRunDuration.WithLabelValues("failed").Observe(time.Since(start).Seconds())
}

// Get returns a document record.
func (s *Service) Get(ctx context.Context, documentID string) (domain.Document, error) {
	doc, err := s.docs.Get(ctx, documentID)
	if err != nil {
		return domain.Document{}, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// List returns a collection's documents.
func (s *Service) List(ctx context.Context, collectionID string) ([]domain.Document, error) {
	if _, err := s.colls.Get(ctx, collectionID); err != nil {
		return nil, fmt.Errorf("get collection: %w", err)
	}
	docs, err := s.docs.ListByCollection(ctx, collectionID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// ListChunks enumerates the document's indexed chunks in sequence order.
func (s *Service) ListChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	doc, err := s.docs.Get(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}

	hits, err := s.index.Search(
		ctx, domain.VectorCollectionName(doc.CollectionID),
		"", vecindex.EnumerationLimit,
		map[string]string{domain.MetaDocumentID: doc.ID},
	)
	if err != nil {
		return nil, fmt.Errorf("enumerate chunks: %w", err)
	}

	chunks := make([]domain.Chunk, len(hits))
	for i, hit := range hits {
		chunks[i] = hit.Chunk
	}
	return chunks, nil
}

// Delete removes a document: vectors and blob best-effort, then the record.
// A record delete failure is the only hard error; stragglers in the index or
// blob store are logged.
func (s *Service) Delete(ctx context.Context, documentID string) error {
	doc, err := s.docs.Get(ctx, documentID)
	if err != nil {
		return fmt.Errorf("get document: %w", err)
	}

	collection := domain.VectorCollectionName(doc.CollectionID)
	err = s.index.Delete(ctx, collection, nil, map[string]string{domain.MetaDocumentID: doc.ID})
	if err != nil {
		s.log.Warn("delete document vectors failed",
			zap.String("document_id", doc.ID), zap.Error(err))
	}

	if err := s.blobs.Delete(ctx, doc.BlobPath); err != nil {
		s.log.Warn("delete document blob failed",
			zap.String("blob_path", doc.BlobPath), zap.Error(err))
	}

	if err := s.docs.Delete(ctx, documentID); err != nil {
		return fmt.Errorf("delete document record: %w", err)
	}
	return nil
}
