package submission

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrBlobNotFound is returned for unknown or revoked blobs.
var ErrBlobNotFound = errors.New("blob not found")

// Blob is a downloadable document.
type Blob struct {
	ID          string
	Filename    string
	ContentType string
	Content     []byte
	CreatedAt   time.Time
}

// BlobStore holds downloadable documents until they are revoked.
type BlobStore interface {
	Create(content []byte, filename, contentType string) (string, error)
	Get(id string) (Blob, error)
	Revoke(id string)
}

// MemoryBlobs is an in-process BlobStore.
type MemoryBlobs struct {
	mu    sync.RWMutex
	blobs map[string]Blob
}

func NewMemoryBlobs() *MemoryBlobs {
	return &MemoryBlobs{blobs: make(map[string]Blob)}
}

func (m *MemoryBlobs) Create(content []byte, filename, contentType string) (string, error) {
	id := uuid.New().String()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[id] = Blob{
		ID:          id,
		Filename:    filename,
		ContentType: contentType,
		Content:     append([]byte(nil), content...),
		CreatedAt:   time.Now(),
	}
	return id, nil
}

func (m *MemoryBlobs) Get(id string) (Blob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[id]
	if !ok {
		return Blob{}, ErrBlobNotFound
	}
	return b, nil
}

func (m *MemoryBlobs) Revoke(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, id)
}

// Len reports the number of live blobs.
func (m *MemoryBlobs) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
