// Package files stores uploaded documents in an S3 compatible bucket.
package files

import (
	"context"
	"errors"
	"io"
)

var ErrNotFound = errors.New("file not found")

type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

type Store interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	// Get returns ErrNotFound for unknown keys. The caller closes Body.
	Get(ctx context.Context, key string) (Object, error)
}
