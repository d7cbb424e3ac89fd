package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process ObjectStore for tests and local development.
// The error fields, when set, are returned by the matching operation.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject

	SignedUploadErr   error
	SignedDownloadErr error
	UploadErr         error
	DownloadErr       error
}

type memoryObject struct {
	contentType string
	data        []byte
}

// NewMemoryStore creates an empty in-memory object store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]memoryObject),
	}
}

func (m *MemoryStore) SignedUploadURL(ctx context.Context, key string) (*SignedUpload, error) {
	if m.SignedUploadErr != nil {
		return nil, m.SignedUploadErr
	}

	token := uuid.NewString()
	return &SignedUpload{
		URL:   "memory:///upload/" + key + "?token=" + url.QueryEscape(token),
		Token: token,
	}, nil
}

func (m *MemoryStore) SignedDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if m.SignedDownloadErr != nil {
		return "", m.SignedDownloadErr
	}

	expires := time.Now().Add(ttl).Unix()
	return fmt.Sprintf("memory:///download/%s?expires=%d", key, expires), nil
}

func (m *MemoryStore) Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	if m.UploadErr != nil {
		return m.UploadErr
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("failed to read upload body: %w", err)
	}

	m.Put(key, contentType, data)
	return nil
}

func (m *MemoryStore) Download(ctx context.Context, key string) ([]byte, error) {
	if m.DownloadErr != nil {
		return nil, m.DownloadErr
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}

	return bytes.Clone(obj.data), nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.objects, key)
	return nil
}

// Put stores an object directly.
func (m *MemoryStore) Put(key, contentType string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[key] = memoryObject{contentType: contentType, data: bytes.Clone(data)}
}

// Has reports whether key exists.
func (m *MemoryStore) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.objects[key]
	return ok
}

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.objects)
}
