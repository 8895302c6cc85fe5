package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/emlakhub/apiserver/config"
)

type memBackend struct {
	objects map[string][]byte
	types   map[string]string
	closed  bool
}

func newMemBackend() *memBackend {
	return &memBackend{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memBackend) EnsureBucket(ctx context.Context) error { return nil }

func (m *memBackend) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = data
	m.types[key] = contentType
	return nil
}

func (m *memBackend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memBackend) Delete(ctx context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memBackend) Bucket() string { return "mem" }

func (m *memBackend) Close() error {
	m.closed = true
	return nil
}

func TestStorageDelegatesToBackend(t *testing.T) {
	backend := newMemBackend()
	s := NewStorage(backend)
	ctx := context.Background()

	if err := s.Put(ctx, "listings/1/a.jpg", strings.NewReader("jpeg"), 4, "image/jpeg"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if backend.types["listings/1/a.jpg"] != "image/jpeg" {
		t.Fatalf("content type not forwarded")
	}

	r, err := s.Get(ctx, "listings/1/a.jpg")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(r)
	_ = r.Close()
	if string(data) != "jpeg" {
		t.Fatalf("unexpected data %q", data)
	}

	if err := s.Delete(ctx, "listings/1/a.jpg"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "listings/1/a.jpg"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
	if err := s.Delete(ctx, "listings/1/a.jpg"); err != nil {
		t.Fatalf("deleting a missing object should succeed, got %v", err)
	}

	if s.Bucket() != "mem" {
		t.Fatalf("unexpected bucket %q", s.Bucket())
	}
	if err := s.Close(); err != nil || !backend.closed {
		t.Fatalf("close not forwarded")
	}
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.Config{StorageBackend: "ftp"})
	if err == nil || !strings.Contains(err.Error(), "unknown storage backend") {
		t.Fatalf("expected unknown backend error, got %v", err)
	}
}

func TestNewMinioClientValidatesConfig(t *testing.T) {
	cases := []config.MinioConfig{
		{},
		{Endpoint: "localhost:9000"},
		{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"},
	}
	for _, cfg := range cases {
		if _, err := NewMinioClient(cfg); err == nil {
			t.Fatalf("expected error for %+v", cfg)
		}
	}
}
