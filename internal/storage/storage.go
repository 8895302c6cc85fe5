package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/emlakhub/apiserver/config"
)

// ErrObjectNotFound is returned by Get when no object is stored under the key.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage defines common photo object operations across backends.
// Delete of a missing key is not an error.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
	Close() error
}

// Storage wraps an ObjectStorage backend with a stable API.
type Storage struct {
	backend ObjectStorage
}

// NewStorage constructs a Storage wrapper for the provided backend.
func NewStorage(backend ObjectStorage) *Storage {
	return &Storage{backend: backend}
}

// Open connects to the backend named by cfg.StorageBackend and makes sure
// its bucket exists.
func Open(ctx context.Context, cfg config.Config) (*Storage, error) {
	var (
		backend ObjectStorage
		err     error
	)
	switch cfg.StorageBackend {
	case "", "minio":
		backend, err = NewMinioClient(cfg.Minio)
	case "gcs":
		backend, err = NewGCSClient(ctx, cfg.GCS)
	case "gridfs":
		backend, err = NewGridFSClient(ctx, cfg.Mongo)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s storage: %w", cfg.StorageBackend, err)
	}

	s := NewStorage(backend)
	if err := s.EnsureBucket(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("ensure bucket %s: %w", s.Bucket(), err)
	}
	return s, nil
}

// EnsureBucket ensures the configured bucket exists.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// Put uploads an object to the configured bucket.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return s.backend.Put(ctx, key, r, size, contentType)
}

// Get opens a reader for an object in the configured bucket.
func (s *Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.backend.Get(ctx, key)
}

// Delete removes an object from the configured bucket.
func (s *Storage) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

// Bucket returns the configured bucket name.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}

// Close releases the backend connection.
func (s *Storage) Close() error {
	return s.backend.Close()
}
