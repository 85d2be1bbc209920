// Package blob stores raw uploaded documents. The backend is addressed by
// URL scheme, so file://, s3://, gs:// and mem:// all work with the same
// code path.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
)

// Store keeps original document payloads under a base URL.
type Store struct {
	fs      afs.Service
	baseURL string
}

// New creates a blob store rooted at baseURL, e.g.
// "file://localhost/var/lib/ragline/blobs" or "mem://localhost/blobs".
func New(baseURL string) *Store {
	return &Store{
		fs:      afs.New(),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Path builds the canonical blob path for a document payload.
func Path(collectionID, documentID, filename string) string {
	return fmt.Sprintf("documents/%s/%s/%s", collectionID, documentID, filename)
}

// Put uploads the payload and returns the stored path.
func (s *Store) Put(ctx context.Context, path string, data []byte) error {
	if err := s.fs.Upload(ctx, s.urlFor(path), file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("upload blob %s: %w", path, err)
	}
	return nil
}

// Get downloads the payload at path.
func (s *Store) Get(ctx context.Context, path string) ([]byte, error) {
	data, err := s.fs.DownloadWithURL(ctx, s.urlFor(path))
	if err != nil {
		return nil, fmt.Errorf("download blob %s: %w", path, err)
	}
	return data, nil
}

// Delete removes the payload at path. Missing blobs are not an error.
func (s *Store) Delete(ctx context.Context, path string) error {
	blobURL := s.urlFor(path)
	exists, err := s.fs.Exists(ctx, blobURL)
	if err != nil {
		return fmt.Errorf("probe blob %s: %w", path, err)
	}
	if !exists {
		return nil
	}
	if err := s.fs.Delete(ctx, blobURL); err != nil {
		return fmt.Errorf("delete blob %s: %w", path, err)
	}
	return nil
}

// Exists reports whether a payload is stored at path.
func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	exists, err := s.fs.Exists(ctx, s.urlFor(path))
	if err != nil {
		return false, fmt.Errorf("probe blob %s: %w", path, err)
	}
	return exists, nil
}

func (s *Store) urlFor(path string) string {
	return url.Join(s.baseURL, path)
}
