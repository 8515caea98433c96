// Package storage keeps the bytes of uploaded documents.
package storage

import (
	"context"
	"errors"
)

var ErrObjectNotFound = errors.New("object not found")

type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete succeeds when the object is already gone.
	Delete(ctx context.Context, key string) error
	// Locator describes where key lives, e.g. a filesystem path or s3:// URL.
	Locator(key string) string
}
