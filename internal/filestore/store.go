// Package filestore is the object storage layer behind the object-backed
// selection store. Providers implement Store; callers never import a
// provider package directly except to construct it.
package filestore

import (
	"context"
	"io"
	"time"
)

// Provider identifies the object storage backend.
type Provider string

const (
	ProviderMinIO Provider = "minio"
)

// Config holds the settings needed to reach an object storage backend.
type Config struct {
	Provider Provider

	// Endpoint is the host:port of the storage server, e.g. "localhost:9000".
	Endpoint string

	AccessKey string
	SecretKey string
	UseSSL    bool

	// Region is only needed by region-aware backends. Leave empty for MinIO.
	Region string
}

// DefaultConfig returns a plain-HTTP MinIO config.
func DefaultConfig(endpoint, accessKey, secretKey string) *Config {
	return &Config{
		Provider:  ProviderMinIO,
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
	}
}

// ObjectInfo describes a single stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
}

// Object is a streaming handle to an object's content.
// The caller must Close it after reading.
type Object interface {
	io.ReadCloser
	Info() *ObjectInfo
}

// Store is the interface every object storage provider implements.
type Store interface {
	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the client's resources.
	Close() error

	// EnsureBucket creates bucket if it does not exist yet.
	EnsureBucket(ctx context.Context, bucket string) error

	// GetObject opens the object at key. A missing object or bucket is
	// reported as errs.ErrKindNotFound.
	GetObject(ctx context.Context, bucket, key string) (Object, error)

	// PutObject replaces the object at key with size bytes read from r.
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) (*ObjectInfo, error)
}
