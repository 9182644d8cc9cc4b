package storage

import "fmt"

// Options selects and configures a scan storage backend.
type Options struct {
	Provider string // "s3" or "local"
	S3       S3Config
	LocalDir string
}

// NewStorage creates a ScanStorage instance based on the configuration.
// Parameters:
//   - opts: provider selection plus backend settings.
// Returns:
//   - ScanStorage: initialized storage implementation.
//   - error: non-nil if the provider is unknown or the backend cannot be created.
func NewStorage(opts *Options) (ScanStorage, error) {
	switch opts.Provider {
	case "s3":
		return NewS3Storage(&opts.S3)
	case "local", "":
		dir := opts.LocalDir
		if dir == "" {
			dir = "./data/scans"
		}
		return NewLocalStorage(dir)
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", opts.Provider)
	}
}
