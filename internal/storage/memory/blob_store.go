package memory

import (
	"context"
	"sync"
)

// BlobStore implements jobs.BlobStore on a map, for local development and
// tests.
type BlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

// NewBlobStore builds an empty blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{objects: make(map[string][]byte)}
}

// PutObject stores data under path and returns a mem:// URI.
func (b *BlobStore) PutObject(_ context.Context, path string, _ string, data []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	copied := append([]byte(nil), data...)
	b.objects[path] = copied
	return "mem://" + path, nil
}

// GetObject returns the stored bytes for path.
func (b *BlobStore) GetObject(path string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[path]
	return data, ok
}

// Len reports how many objects are stored.
func (b *BlobStore) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}
