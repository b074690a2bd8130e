package blobstore

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
)

type storedBlob struct {
	obj     Object
	content []byte
}

// InMemoryBlobStore keeps images in process memory. Objects are served back
// through the download route under baseURL.
type InMemoryBlobStore struct {
	mu      sync.RWMutex
	blobs   map[string]*storedBlob
	baseURL string
}

func NewInMemoryBlobStore(baseURL string) *InMemoryBlobStore {
	return &InMemoryBlobStore{
		blobs:   make(map[string]*storedBlob),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (s *InMemoryBlobStore) Upload(_ context.Context, obj Object, content io.Reader) (*Object, error) {
	data, err := readValidated(&obj, content)
	if err != nil {
		return nil, err
	}
	obj.ID = uuid.NewString()
	obj.URL = s.baseURL + "/" + obj.ID

	s.mu.Lock()
	s.blobs[obj.ID] = &storedBlob{obj: obj, content: data}
	s.mu.Unlock()

	out := obj
	return &out, nil
}

func (s *InMemoryBlobStore) Download(_ context.Context, id string) (io.ReadCloser, *Object, error) {
	s.mu.RLock()
	blob, ok := s.blobs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, ErrBlobNotFound
	}
	obj := blob.obj
	return io.NopCloser(bytes.NewReader(blob.content)), &obj, nil
}

func (s *InMemoryBlobStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[id]; !ok {
		return ErrBlobNotFound
	}
	delete(s.blobs, id)
	return nil
}

// Len reports how many objects are stored.
func (s *InMemoryBlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
