package adapter

import "context"

// ObjectStore is the port for the media/artifact bucket.
// Get returns an error wrapping domain.ErrObjectNotFound for missing keys.
type ObjectStore interface {
	// Get downloads key into the local file at dst, creating or truncating it.
	Get(ctx context.Context, key, dst string) error
	// Put uploads the local file src under key.
	Put(ctx context.Context, key, src string) error
	// PutBytes uploads an in-memory body under key.
	PutBytes(ctx context.Context, key string, body []byte, contentType string) error
	Delete(ctx context.Context, key string) error
	// Location renders key for logs, e.g. s3://bucket/key.
	Location(key string) string
}
