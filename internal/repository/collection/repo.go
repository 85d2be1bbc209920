// Package collection persists collection records in BadgerDB as JSON values
// under a per-entity key prefix.
package collection

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

const keyPrefix = "col:"

func recordKey(id string) []byte {
	return []byte(keyPrefix + id)
}

// Repo implements collection storage over BadgerDB.
type Repo struct {
	backend *storebadger.Backend
}

// New creates a collection repository.
func New(backend *storebadger.Backend) *Repo {
	return &Repo{backend: backend}
}

// Create stores a new collection record.
func (r *Repo) Create(_ context.Context, col domain.Collection) error {
	value, err := json.Marshal(col)
	if err != nil {
		return fmt.Errorf("marshal collection: %w", err)
	}

	return r.backend.Update(func(tx *badger.Txn) error {
		key := recordKey(col.ID)
		if _, err := tx.Get(key); err == nil {
			return fmt.Errorf("collection %s exists: %w", col.ID, domain.ErrValidation)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return tx.Set(key, value)
	})
}

// Get retrieves a collection by id.
func (r *Repo) Get(_ context.Context, id string) (domain.Collection, error) {
	var col domain.Collection
	err := r.backend.View(func(tx *badger.Txn) error {
		item, err := tx.Get(recordKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &col)
		})
	})
	if err != nil {
		return domain.Collection{}, err
	}
	return col, nil
}

// List returns all collections sorted by creation time.
func (r *Repo) List(_ context.Context) ([]domain.Collection, error) {
	collections := []domain.Collection{}
	err := r.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var col domain.Collection
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &col)
			})
			if err != nil {
				return fmt.Errorf("parse collection %s: %w", it.Item().Key(), err)
			}
			collections = append(collections, col)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(collections, func(i, j int) bool {
		return collections[i].CreatedAt.Before(collections[j].CreatedAt)
	})
	return collections, nil
}

// Update overwrites an existing collection record.
func (r *Repo) Update(_ context.Context, col domain.Collection) error {
	value, err := json.Marshal(col)
	if err != nil {
		return fmt.Errorf("marshal collection: %w", err)
	}

	return r.backend.Update(func(tx *badger.Txn) error {
		key := recordKey(col.ID)
		if _, err := tx.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return domain.ErrNotFound
		} else if err != nil {
			return err
		}
		return tx.Set(key, value)
	})
}

// Delete removes a collection record.
func (r *Repo) Delete(_ context.Context, id string) error {
	return r.backend.Update(func(tx *badger.Txn) error {
		key := recordKey(id)
		if _, err := tx.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return domain.ErrNotFound
		} else if err != nil {
			return err
		}
		return tx.Delete(key)
	})
}
