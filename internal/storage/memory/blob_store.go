// Package memory provides in-process stores for development and tests.
package memory

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"
)

// BlobStore keeps archived snapshots in memory and returns pseudo URIs.
type BlobStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewBlobStore creates a new in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{data: make(map[string][]byte)}
}

// PutObject keeps a copy of the archive and returns a memory:// URI.
func (s *BlobStore) PutObject(ctx context.Context, path string, _ string, data io.Reader) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("put %s: %w", path, err)
	}
	body, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read archive %s: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[path] = body
	return "memory://" + path, nil
}

// Object returns a stored object.
func (s *BlobStore) Object(path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.data[path]
	return append([]byte(nil), b...), ok
}

// Paths lists stored object paths in lexical, and so chronological, order.
func (s *BlobStore) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.data))
}
