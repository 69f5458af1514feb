// Package persist defines the blob storage contract used by disk-backed stores.
package persist

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when no blob exists under the key.
var ErrNotFound = errors.New("blob not found")

// BlobStore stores opaque blobs under slash-separated keys such as "fdutools/bus.json".
type BlobStore interface {
	Save(ctx context.Context, key string, value []byte) error
	Load(ctx context.Context, key string) ([]byte, error)
	// Remove deletes the blob; removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}

// Sweeper is implemented by stores able to drop every blob under a key prefix.
type Sweeper interface {
	RemovePrefix(ctx context.Context, prefix string) error
}
