// Package memory keeps articles, categories and uploaded images in process
// memory for development and tests.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/JakeFAU/magazine-cms/internal/content"
)

// DefaultPublicPrefix is where the HTTP server exposes locally held objects.
const DefaultPublicPrefix = "/uploads"

type object struct {
	data        []byte
	contentType string
}

// BlobStore stores image uploads in-memory and returns site-relative URLs.
type BlobStore struct {
	mu      sync.RWMutex
	objects map[string]object
	prefix  string
}

// NewBlobStore creates a new in-memory blob store. Returned references are
// publicPrefix joined with the object path.
func NewBlobStore(publicPrefix string) *BlobStore {
	if publicPrefix == "" {
		publicPrefix = DefaultPublicPrefix
	}
	return &BlobStore{
		objects: make(map[string]object),
		prefix:  strings.TrimRight(publicPrefix, "/"),
	}
}

// PutObject persists the content and returns its public reference.
func (s *BlobStore) PutObject(_ context.Context, path string, contentType string, data io.Reader) (string, error) {
	path = strings.TrimLeft(path, "/")
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	byteData, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("failed to read data from reader: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = object{data: byteData, contentType: contentType}
	return s.prefix + "/" + path, nil
}

// DeleteObject removes the object at path. Missing objects are not an error.
func (s *BlobStore) DeleteObject(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, strings.TrimLeft(path, "/"))
	return nil
}

// OpenObject returns a reader over a stored object and its content type.
func (s *BlobStore) OpenObject(_ context.Context, path string) (io.ReadCloser, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[strings.TrimLeft(path, "/")]
	if !ok {
		return nil, "", content.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), obj.contentType, nil
}

// Len reports how many objects are held.
func (s *BlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
