package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage implements ScanStorage on the local filesystem, used for
// development and single-node deployments.
type LocalStorage struct {
	baseDir string
}

// NewLocalStorage creates a filesystem-backed scan store rooted at baseDir.
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir}, nil
}

// path resolves a key inside the base directory, rejecting traversal.
func (s *LocalStorage) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	full := filepath.Join(s.baseDir, clean)
	if !strings.HasPrefix(full, filepath.Clean(s.baseDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid key: %s", key)
	}
	return full, nil
}

// Upload stores a scan image under key.
func (s *LocalStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	_ = ctx
	_ = size
	_ = contentType

	full, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.Create(full)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, reader); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// Download retrieves a stored scan image.
func (s *LocalStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	_ = ctx
	full, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// GetURL returns the file path for a stored scan.
func (s *LocalStorage) GetURL(key string) string {
	full, err := s.path(key)
	if err != nil {
		return ""
	}
	return "file://" + full
}

// Delete removes a stored scan.
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	_ = ctx
	full, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Exists checks if a scan exists.
func (s *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	_ = ctx
	full, err := s.path(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
