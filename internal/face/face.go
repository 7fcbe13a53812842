// Package face abstracts the external face-recognition capability. Exactly
// two providers exist (AWS Rekognition and Azure Face); the active one is
// chosen once at process start and never per call.
package face

import (
	"context"
	"fmt"
	"regexp"

	"github.com/google/uuid"

	"github.com/your-org/photofind/internal/config"
	"github.com/your-org/photofind/internal/storage"
)

// Match is one backend search hit. ExternalID carries back the photo-record
// identifier registered at index time.
type Match struct {
	Similarity float32 `json:"similarity"`
	ExternalID string  `json:"external_id"`
}

// Index is the face-recognition capability set.
type Index interface {
	// EnsureCollection is an idempotent get-or-create for the event's face
	// collection. The returned id is deterministic for a given event.
	EnsureCollection(ctx context.Context, eventSlug string) (string, error)

	// IndexPhoto registers the faces of a stored object under the photo
	// record's own id. The signature takes a uuid.UUID on purpose: passing a
	// filename would silently break search-time correlation, so the type
	// forbids it. Zero detected faces returns (0, nil).
	IndexPhoto(ctx context.Context, eventSlug, bucket, key string, photoID uuid.UUID) (int, error)

	// Search returns matches for the probe image, descending by similarity.
	// Ties keep the backend's native order; results are never re-sorted here.
	Search(ctx context.Context, eventSlug string, probe []byte, maxResults int, minSimilarity float32) ([]Match, error)
}

// NewIndex builds the single active provider. The store is needed by the
// Azure provider, which indexes from downloaded bytes rather than a bucket
// reference.
func NewIndex(cfg config.FaceConfig, store storage.ObjectStore) (Index, error) {
	switch cfg.Provider {
	case config.FaceProviderRekognition:
		return NewRekognitionIndex(cfg.Rekognition, cfg.CollectionPrefix)
	case config.FaceProviderAzure:
		return NewAzureIndex(cfg.Azure, cfg.CollectionPrefix, store)
	default:
		return nil, fmt.Errorf("unknown face provider %q", cfg.Provider)
	}
}

var identifierUnsafe = regexp.MustCompile(`[^a-zA-Z0-9_.:-]`)

const maxIdentifierLen = 100

// SanitizeIdentifier maps raw into the restricted charset both backends
// accept, truncated to a backend-legal length. It is pure and deterministic;
// every call site that needs a backend-legal identifier goes through here.
func SanitizeIdentifier(raw string) string {
	safe := identifierUnsafe.ReplaceAllString(raw, "_")
	if len(safe) > maxIdentifierLen {
		safe = safe[:maxIdentifierLen]
	}
	return safe
}
