// Package blobstore provides the object-store abstraction the ingestion
// pipeline writes partition artifacts and cursor documents through.
package blobstore

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by Download when no object exists at the path.
var ErrNotFound = errors.New("blobstore: object not found")

// Store is the narrow object-store contract used by the writer and cursor
// layers. Upload always overwrites.
type Store interface {
	Upload(ctx context.Context, path string, data []byte) error
	Download(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// MemStore is an in-memory Store used in tests and dry runs.
type MemStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{objects: make(map[string][]byte)}
}

// Upload stores a copy of data at path, replacing any prior content.
func (m *MemStore) Upload(ctx context.Context, path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	m.objects[path] = buf
	return nil
}

// Download returns a copy of the object at path, or ErrNotFound.
func (m *MemStore) Download(ctx context.Context, path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[path]
	if !ok {
		return nil, ErrNotFound
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}

// Exists reports whether an object is present at path.
func (m *MemStore) Exists(ctx context.Context, path string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[path]
	return ok, nil
}

// Paths returns all stored object paths. Test helper.
func (m *MemStore) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	paths := make([]string, 0, len(m.objects))
	for p := range m.objects {
		paths = append(paths, p)
	}
	return paths
}
