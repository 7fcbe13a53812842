// Package search resolves a probe selfie to stored photos: backend search,
// correlation back to relational records, tombstone filtering, presigning.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/your-org/photofind/internal/bundle"
	"github.com/your-org/photofind/internal/config"
	"github.com/your-org/photofind/internal/face"
	"github.com/your-org/photofind/internal/ingest"
	"github.com/your-org/photofind/internal/models"
	"github.com/your-org/photofind/internal/observability"
	"github.com/your-org/photofind/internal/storage"
)

// RecordResolver is the slice of the relational store search needs:
// batched identifier lookups only.
type RecordResolver interface {
	GetActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Photo, error)
	TrackUsage(ctx context.Context, action models.UsageAction, eventSlug string, uploaderRef *string) error
}

// JobPublisher hands archive-assembly work to the queue. Publishing never
// blocks on the assembly itself.
type JobPublisher interface {
	PublishBundleJob(ctx context.Context, job models.BundleJob) error
}

type Item struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type Result struct {
	Count     int     `json:"count"`
	Items     []Item  `json:"items"`
	BundleURL *string `json:"bundle_url"`
}

type Pipeline struct {
	objects  storage.ObjectStore
	faces    face.Index
	records  RecordResolver
	jobs     JobPublisher
	bucket   string
	limits   config.IngestConfig
	cfg      config.SearchConfig
	ttl      time.Duration
	backends *semaphore.Weighted
}

func NewPipeline(objects storage.ObjectStore, faces face.Index, records RecordResolver, jobs JobPublisher,
	bucket string, limits config.IngestConfig, cfg config.SearchConfig, presignTTL time.Duration) *Pipeline {
	return &Pipeline{
		objects:  objects,
		faces:    faces,
		records:  records,
		jobs:     jobs,
		bucket:   bucket,
		limits:   limits,
		cfg:      cfg,
		ttl:      presignTTL,
		backends: semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
	}
}

// Search runs one probe against the event's collection. A probe with no
// detectable face yields an empty result, not an error.
func (p *Pipeline) Search(ctx context.Context, eventSlug string, probe []byte, wantBundle bool, uploaderRef *string) (*Result, error) {
	if _, err := ingest.ValidateUpload(probe, models.MediaClassSearchable, p.limits); err != nil {
		return nil, err
	}

	// The backend call is the expensive part; bound how many run at once so
	// a burst of searches degrades to queueing, not saturation.
	if err := p.backends.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire search slot: %w", err)
	}
	matches, err := p.faces.Search(ctx, eventSlug, probe, p.cfg.MaxResults, p.cfg.SimilarityThreshold)
	p.backends.Release(1)
	if err != nil {
		return nil, fmt.Errorf("face search: %w", err)
	}

	keys, err := p.correlate(ctx, matches)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(keys))
	for _, key := range keys {
		url, err := p.objects.Presign(ctx, p.bucket, key, p.ttl)
		if err != nil {
			return nil, fmt.Errorf("presign %s: %w", key, err)
		}
		items = append(items, Item{Key: key, URL: url})
	}

	result := &Result{Count: len(items), Items: items}

	if wantBundle && len(keys) > 0 {
		bundleURL, err := p.requestBundle(ctx, eventSlug, keys)
		if err != nil {
			// The matches are still good; the caller just doesn't get an
			// archive this time.
			slog.Error("request bundle", "event", eventSlug, "error", err)
		} else {
			result.BundleURL = &bundleURL
		}
	}

	if err := p.records.TrackUsage(ctx, models.UsageActionSearch, eventSlug, uploaderRef); err != nil {
		slog.Error("track search usage", "event", eventSlug, "error", err)
	}
	observability.Searches.WithLabelValues(eventSlug).Inc()
	observability.SearchMatches.WithLabelValues(eventSlug).Observe(float64(len(items)))

	return result, nil
}

// correlate resolves backend matches to storage keys: one set-membership
// query, stale identifiers dropped, similarity order and backend tie order
// preserved, duplicate keys collapsed to their best-ranked occurrence.
func (p *Pipeline) correlate(ctx context.Context, matches []face.Match) ([]string, error) {
	ids := make([]uuid.UUID, 0, len(matches))
	for _, m := range matches {
		// Defensive re-check; the backend already applied the threshold.
		if m.Similarity < p.cfg.SimilarityThreshold {
			continue
		}
		id, err := uuid.Parse(m.ExternalID)
		if err != nil {
			// Not one of ours. An identifier that isn't a record id cannot
			// be correlated, same as a tombstone.
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	photos, err := p.records.GetActiveByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve matches: %w", err)
	}
	byID := make(map[uuid.UUID]models.Photo, len(photos))
	for _, ph := range photos {
		byID[ph.ID] = ph
	}

	seen := make(map[string]bool, len(ids))
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		ph, ok := byID[id]
		if !ok {
			continue // tombstoned: record deleted after indexing
		}
		if seen[ph.StorageKey] {
			continue
		}
		seen[ph.StorageKey] = true
		keys = append(keys, ph.StorageKey)
	}
	return keys, nil
}

// requestBundle presigns the content-addressed archive URL up front and
// queues the assembly. The URL is valid as soon as the worker uploads the
// archive; repeat result sets land on the same key.
func (p *Pipeline) requestBundle(ctx context.Context, eventSlug string, keys []string) (string, error) {
	archiveKey := bundle.ContentAddress(keys)

	url, err := p.objects.Presign(ctx, p.bucket, archiveKey, p.ttl)
	if err != nil {
		return "", fmt.Errorf("presign archive: %w", err)
	}

	job := models.BundleJob{
		EventSlug:   eventSlug,
		ArchiveKey:  archiveKey,
		StorageKeys: keys,
		RequestedAt: time.Now(),
	}
	if err := p.jobs.PublishBundleJob(ctx, job); err != nil {
		return "", fmt.Errorf("publish bundle job: %w", err)
	}
	return url, nil
}
