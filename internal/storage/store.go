package storage

import (
	"context"
	"errors"
	"io"
	"net/url"
	"time"
)

// ErrBucketMissing is returned by Ping when the configured bucket does not exist.
var ErrBucketMissing = errors.New("storage: bucket does not exist")

// BlobStore is the object store holding uploaded file bytes.
type BlobStore interface {
	// Put writes body under key and returns the number of bytes stored.
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (int64, error)
	Delete(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key, filename string, expires time.Duration) (*url.URL, error)
	Ping(ctx context.Context) error
	Bucket() string
}
