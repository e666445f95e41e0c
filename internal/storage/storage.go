package storage

import (
	"context"
	"io"

	"github.com/dukerupert/addrfmt/internal"
)

// Storage defines the interface for dataset object storage.
// Implementations can use the local filesystem or Cloudflare R2.
type Storage interface {
	// Put stores an object and returns its URL/path for retrieval.
	// The key is a slash-separated path (e.g., "i18n/US.json"). Existing objects are replaced.
	Put(ctx context.Context, key string, content io.Reader, contentType string) (string, error)

	// Get retrieves an object by its key.
	// Returns an io.ReadCloser that must be closed by the caller.
	// Returns an error matching ErrNotExist when the key is absent.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes an object by its key.
	// Returns nil if the object doesn't exist (idempotent).
	Delete(ctx context.Context, key string) error

	// URL returns the public URL for accessing a stored object.
	URL(key string) string

	// Exists checks if an object exists at the given key.
	Exists(ctx context.Context, key string) (bool, error)
}

// NewStorage creates a Storage implementation based on configuration.
// Returns LocalStorage for "local" provider, R2Storage for "r2" provider.
func NewStorage(cfg internal.StorageConfig) (Storage, error) {
	switch cfg.Provider {
	case "local", "":
		return NewLocalStorage(cfg.LocalPath, cfg.LocalURL)
	case "r2":
		return NewR2Storage(R2Config{
			AccountID:   cfg.R2AccountID,
			AccessKeyID: cfg.R2AccessKeyID,
			SecretKey:   cfg.R2SecretKey,
			BucketName:  cfg.R2BucketName,
			PublicURL:   cfg.R2PublicURL,
			Endpoint:    cfg.R2Endpoint,
		})
	default:
		return nil, ErrUnknownProvider(cfg.Provider)
	}
}
