// Package document persists document records in BadgerDB. A secondary
// index key per (collection, document) pair supports listing by collection
// without a full scan.
package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/lattica-ai/ragline/internal/domain"
	storebadger "github.com/lattica-ai/ragline/internal/store/badger"
)

const (
	keyPrefix      = "doc:"
	byCollectionNS = "doccol:"
)

func recordKey(id string) []byte {
	return []byte(keyPrefix + id)
}

func byCollectionKey(collectionID, documentID string) []byte {
	return []byte(byCollectionNS + collectionID + ":" + documentID)
}

func byCollectionPrefix(collectionID string) []byte {
	return []byte(byCollectionNS + collectionID + ":")
}

// Repo implements document storage over BadgerDB.
type Repo struct {
	backend *storebadger.Backend
}

// New creates a document repository.
func New(backend *storebadger.Backend) *Repo {
	return &Repo{backend: backend}
}

// Create stores a new document record and its collection index entry.
func (r *Repo) Create(_ context.Context, doc domain.Document) error {
	value, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	return r.backend.Update(func(tx *badger.Txn) error {
		if err := tx.Set(recordKey(doc.ID), value); err != nil {
			return err
		}
		return tx.Set(byCollectionKey(doc.CollectionID, doc.ID), []byte(doc.ID))
	})
}

// Get retrieves a document by id.
func (r *Repo) Get(_ context.Context, id string) (domain.Document, error) {
	var doc domain.Document
	err := r.backend.View(func(tx *badger.Txn) error {
		return readDocument(tx, id, &doc)
	})
	if err != nil {
		return domain.Document{}, err
	}
	return doc, nil
}

// ListByCollection returns the collection's documents sorted by creation time.
func (r *Repo) ListByCollection(_ context.Context, collectionID string) ([]domain.Document, error) {
	docs := []domain.Document{}
	err := r.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = byCollectionPrefix(collectionID)
		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var docID string
			err := it.Item().Value(func(val []byte) error {
				docID = string(val)
				return nil
			})
			if err != nil {
				return err
			}

			var doc domain.Document
			if err := readDocument(tx, docID, &doc); err != nil {
				// Index entry without a record means a partially deleted
				// document; skip it.
				if errors.Is(err, domain.ErrNotFound) {
					continue
				}
				return err
			}
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
	return docs, nil
}

// Update overwrites an existing document record.
func (r *Repo) Update(_ context.Context, doc domain.Document) error {
	value, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	return r.backend.Update(func(tx *badger.Txn) error {
		if _, err := tx.Get(recordKey(doc.ID)); errors.Is(err, badger.ErrKeyNotFound) {
			return domain.ErrNotFound
		} else if err != nil {
			return err
		}
		return tx.Set(recordKey(doc.ID), value)
	})
}

// Delete removes a document record and its index entry.
func (r *Repo) Delete(_ context.Context, id string) error {
	return r.backend.Update(func(tx *badger.Txn) error {
		var doc domain.Document
		if err := readDocument(tx, id, &doc); err != nil {
			return err
		}
		if err := tx.Delete(byCollectionKey(doc.CollectionID, id)); err != nil {
			return err
		}
		return tx.Delete(recordKey(id))
	})
}

func readDocument(tx *badger.Txn, id string, doc *domain.Document) error {
	item, err := tx.Get(recordKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, doc)
	})
}
