package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// MemoryStore keeps objects in process memory. It backs the "memory" storage
// driver used for local runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string]memoryObject
}

type memoryObject struct {
	data        []byte
	contentType string
}

// NewMemoryStore constructs an empty store for bucket.
func NewMemoryStore(bucket string) *MemoryStore {
	return &MemoryStore{bucket: bucket, objects: make(map[string]memoryObject)}
}

// Bucket returns the bucket name.
func (s *MemoryStore) Bucket() string {
	return s.bucket
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// Put stores the full body. A non-negative size must match the bytes read.
func (s *MemoryStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (int64, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, body)
	if err != nil {
		return 0, err
	}
	if size >= 0 && n != size {
		return 0, fmt.Errorf("storage: short write for %q: read %d of %d bytes", key, n, size)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.objects[key] = memoryObject{data: buf.Bytes(), contentType: contentType}
	s.mu.Unlock()
	return n, nil
}

// Delete removes an object.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

// PresignGet returns a memory:// URL carrying the expiry.
func (s *MemoryStore) PresignGet(_ context.Context, key, filename string, expires time.Duration) (*url.URL, error) {
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(int64(expires.Seconds()), 10))
	if filename != "" {
		q.Set("filename", filename)
	}
	return &url.URL{Scheme: "memory", Host: s.bucket, Path: "/" + key, RawQuery: q.Encode()}, nil
}

// Object returns the stored bytes and content type for key.
func (s *MemoryStore) Object(key string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, "", false
	}
	return append([]byte(nil), obj.data...), obj.contentType, true
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
