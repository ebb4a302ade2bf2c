package model

import (
	"context"
	"io"
)

// ImageStorage stores listing images and returns their public URLs.
type ImageStorage interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}
