package storage

import (
	"context"
	"io"
)

// ScanStorage defines the interface for storing uploaded scan images so
// evaluations can be audited later.
type ScanStorage interface {
	// Upload stores a scan image under key.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download retrieves a stored scan image.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// GetURL returns the URL for accessing a stored scan.
	GetURL(key string) string

	// Delete removes a stored scan.
	Delete(ctx context.Context, key string) error

	// Exists checks if a scan exists.
	Exists(ctx context.Context, key string) (bool, error)
}
