package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/photofind/internal/config"
)

// ErrObjectNotFound is returned by Get and Stat when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore is the capability set both providers implement. Every call is
// a network round trip and takes a context.
type ObjectStore interface {
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	// Presign returns a time-limited credential-free GET URL for the object.
	Presign(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
	List(ctx context.Context, bucket, prefix string) ([]string, error)
	// Stat reports whether the object exists; ErrObjectNotFound when absent.
	Stat(ctx context.Context, bucket, key string) error
	// Delete is idempotent and tolerates a missing key.
	Delete(ctx context.Context, bucket, key string) error
}

// NewObjectStore builds the single active provider. The choice is fixed for
// the process lifetime; config validation has already rejected unknown names,
// the default branch only guards direct construction.
func NewObjectStore(cfg config.StorageConfig) (ObjectStore, error) {
	switch cfg.Provider {
	case config.StorageProviderMinIO:
		return NewMinIOStore(cfg.MinIO)
	case config.StorageProviderS3:
		return NewS3Store(cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}

// MakeObjectKey builds a collision-resistant key for an uploaded file:
// event, category, upload time, and a random component.
func MakeObjectKey(eventSlug, category string, contentType string, now time.Time) string {
	return fmt.Sprintf("%s/%s/%d-%s%s",
		eventSlug, category, now.Unix(), uuid.New().String(), GuessExt(contentType))
}

// GuessExt maps a content type to a file extension.
func GuessExt(contentType string) string {
	exts, err := mime.ExtensionsByType(contentType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	// mime returns ".jpe" first for image/jpeg on some platforms
	for _, e := range exts {
		if e == ".jpg" {
			return e
		}
	}
	if exts[0] == ".jpe" {
		return ".jpg"
	}
	return exts[0]
}
