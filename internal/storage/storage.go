// Package storage provides object storage for generated artifacts.
//
// This package defines a Storage interface with implementations for:
// - LocalStorage: File system storage for development
// - R2Storage: Cloudflare R2 (S3-compatible) storage for production
//
// Generated images, their thumbnails and rendered PDFs are written once
// under per-account keys and handed back to clients as URLs.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Storage defines the interface for object storage operations.
//
// All methods are context-aware for timeout and cancellation support.
type Storage interface {
	// Put stores data at key. Existing objects are replaced.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Delete removes the object at key.
	// This operation is idempotent - no error is returned if the key doesn't exist.
	Delete(ctx context.Context, key string) error

	// URL returns a URL for the object at key. Public URLs are permanent;
	// presigned URLs are valid for expires (a default applies when zero).
	URL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// =============================================================================
// Configuration Types
// =============================================================================

// Config selects and configures a storage provider.
type Config struct {
	Provider string // ProviderLocal or ProviderR2
	Local    LocalConfig
	R2       R2Config
}

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	// BasePath is the root directory where files are stored.
	// Example: "./storage" or "/var/lib/dentalab/files"
	BasePath string

	// BaseURL is the public URL prefix for accessing files.
	// Example: "http://localhost:8080/files"
	BaseURL string
}

// R2Config holds configuration for Cloudflare R2 storage.
type R2Config struct {
	// AccountID is your Cloudflare account ID.
	AccountID string

	// AccessKeyID is the R2 API access key ID.
	AccessKeyID string

	// SecretAccessKey is the R2 API secret key.
	SecretAccessKey string

	// BucketName is the name of the R2 bucket to use.
	BucketName string

	// PublicURL is the public URL for the bucket (if using a custom domain).
	// If empty, presigned URLs are used for all access.
	PublicURL string

	// Endpoint overrides the endpoint derived from AccountID. Used by tests
	// and S3-compatible stores other than R2.
	Endpoint string

	// Region is required by the AWS SDK. R2 accepts "auto".
	Region string
}

// =============================================================================
// Provider Constants
// =============================================================================

const (
	// ProviderLocal identifies the local filesystem storage provider.
	ProviderLocal = "local"

	// ProviderR2 identifies the Cloudflare R2 storage provider.
	ProviderR2 = "r2"
)

// New builds the configured storage provider.
func New(cfg Config, logger *slog.Logger) (Storage, error) {
	switch cfg.Provider {
	case ProviderLocal, "":
		return NewLocalStorage(cfg.Local, logger)
	case ProviderR2:
		return NewR2Storage(cfg.R2, logger)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}

// =============================================================================
// Key Generation Helpers
// =============================================================================

// ImageKey generates a storage key for a generated image.
// Format: accounts/{accountID}/images/{imageID}.{ext}
func ImageKey(accountID, imageID uuid.UUID, ext string) string {
	return fmt.Sprintf("accounts/%s/images/%s.%s", accountID, imageID, strings.TrimPrefix(ext, "."))
}

// ThumbnailKey generates a storage key for an image thumbnail.
// Thumbnails are always JPEG.
// Format: accounts/{accountID}/thumbnails/{imageID}.jpg
func ThumbnailKey(accountID, imageID uuid.UUID) string {
	return fmt.Sprintf("accounts/%s/thumbnails/%s.jpg", accountID, imageID)
}

// DocumentKey generates a storage key for a rendered document.
// Format: accounts/{accountID}/documents/{documentID}.pdf
func DocumentKey(accountID, documentID uuid.UUID) string {
	return fmt.Sprintf("accounts/%s/documents/%s.pdf", accountID, documentID)
}

// ExtensionFor returns the file extension for the MIME types this service
// writes.
func ExtensionFor(contentType string) string {
	base := strings.TrimSpace(strings.ToLower(strings.Split(contentType, ";")[0]))
	switch base {
	case "image/png":
		return "png"
	case "image/jpeg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "application/pdf":
		return "pdf"
	default:
		return "bin"
	}
}

// validateKey rejects empty keys and path traversal attempts.
func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return ErrInvalidKey
		}
	}
	return nil
}
