package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// MemoryStore implements Store using an in-memory map. It is used by unit
// tests that exercise the pipeline without a live S3-compatible backend.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memObject
}

type memObject struct {
	data        []byte
	contentType string
}

// NewMemoryStore creates an empty in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memObject)}
}

func (m *MemoryStore) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.objects[name] = memObject{data: cp, contentType: contentType}
	return name, nil
}

func (m *MemoryStore) PutStream(ctx context.Context, name string, r io.Reader, length int64, contentType string) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, length))
	if err != nil {
		return "", fmt.Errorf("blobstore: read stream: %w", err)
	}
	return m.Put(ctx, name, data, contentType)
}

func (m *MemoryStore) Get(ctx context.Context, name string, localPath string) error {
	m.mu.RLock()
	obj, ok := m.objects[name]
	m.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("blobstore: create local file %q: %w", localPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, bytes.NewReader(obj.data)); err != nil {
		return fmt.Errorf("blobstore: write local file %q: %w", localPath, err)
	}
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, name)
	return nil
}

func (m *MemoryStore) PresignedGet(ctx context.Context, name string, ttl time.Duration) (string, error) {
	m.mu.RLock()
	_, ok := m.objects[name]
	m.mu.RUnlock()
	if !ok {
		return "", ErrNotFound
	}
	return fmt.Sprintf("memory://%s?ttl=%s", name, ttl), nil
}
