// Package badger wraps the embedded BadgerDB instance holding all record
// metadata. Repositories build their key schemes on top of the raw
// transaction helpers here.
package badger

import (
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"go.uber.org/zap"
)

// Backend wraps a BadgerDB instance.
type Backend struct {
	db *badger.DB
}

// zapLoggerAdapter routes badger's internal logging through zap.
type zapLoggerAdapter struct {
	log *zap.SugaredLogger
}

var _ badger.Logger = (*zapLoggerAdapter)(nil)

func (l *zapLoggerAdapter) Errorf(msg string, args ...any)   { l.log.Errorf(msg, args...) }
func (l *zapLoggerAdapter) Warningf(msg string, args ...any) { l.log.Warnf(msg, args...) }
func (l *zapLoggerAdapter) Infof(msg string, args ...any)    { l.log.Debugf(msg, args...) }
func (l *zapLoggerAdapter) Debugf(msg string, args ...any)   { l.log.Debugf(msg, args...) }

// Open opens the database at dir, creating it if needed. With inMemory set
// the dir is ignored and nothing is persisted.
func Open(dir string, inMemory bool, log *zap.Logger) (*Backend, error) {
	var opts badger.Options

	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		info, err := os.Stat(dir)
		if os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create records dir: %w", err)
			}
		} else if err != nil {
			return nil, err
		} else if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", dir)
		}
		opts = badger.DefaultOptions(dir)
	}

	opts.Logger = &zapLoggerAdapter{log: log.Named("badger").Sugar()}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Backend{db: db}, nil
}

// Close closes the database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// Update runs fn in a read-write transaction, committing on nil error.
func (b *Backend) Update(fn func(tx *badger.Txn) error) error {
	return b.db.Update(fn)
}

// View runs fn in a read-only transaction.
func (b *Backend) View(fn func(tx *badger.Txn) error) error {
	return b.db.View(fn)
}
