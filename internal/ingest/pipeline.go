package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/your-org/photofind/internal/config"
	"github.com/your-org/photofind/internal/face"
	"github.com/your-org/photofind/internal/models"
	"github.com/your-org/photofind/internal/observability"
	"github.com/your-org/photofind/internal/storage"
)

// RecordStore is the slice of the relational store the pipeline needs.
type RecordStore interface {
	InsertPendingPhoto(ctx context.Context, p *models.Photo) error
	PromotePhotoWithMetric(ctx context.Context, photoID uuid.UUID, action models.UsageAction, eventSlug string, uploaderRef *string) error
}

// Item is one uploaded file.
type Item struct {
	Filename string
	Data     []byte
}

// Outcome reports one file's result. Err is either a *ValidationError or a
// backend failure; sibling files are unaffected either way.
type Outcome struct {
	Filename     string
	PhotoID      uuid.UUID
	StorageKey   string
	FacesIndexed int
	Err          error
}

// Pipeline runs validate → pending record → store → index → promote+metric
// for each uploaded file. The pending record is written before the external
// calls so a crash mid-ingestion leaves a reconcilable row, not a silent
// orphan object.
type Pipeline struct {
	objects storage.ObjectStore
	faces   face.Index
	records RecordStore
	bucket  string
	limits  config.IngestConfig
}

func NewPipeline(objects storage.ObjectStore, faces face.Index, records RecordStore, bucket string, limits config.IngestConfig) *Pipeline {
	return &Pipeline{
		objects: objects,
		faces:   faces,
		records: records,
		bucket:  bucket,
		limits:  limits,
	}
}

func categoryFor(class models.MediaClass) string {
	if class == models.MediaClassSearchable {
		return "photos"
	}
	return "media"
}

// IngestOne processes a single file. Object-store and face-backend writes
// happen before the promoting transaction and are not rolled back if it
// fails; reconciliation of pending rows is an external sweep.
func (p *Pipeline) IngestOne(ctx context.Context, eventSlug string, class models.MediaClass, uploaderRef *string, item Item) Outcome {
	out := Outcome{Filename: item.Filename}

	contentType, err := ValidateUpload(item.Data, class, p.limits)
	if err != nil {
		observability.PhotosRejected.WithLabelValues(eventSlug, "validation").Inc()
		out.Err = err
		return out
	}

	photo := &models.Photo{
		ID:          uuid.New(),
		EventSlug:   eventSlug,
		StorageKey:  storage.MakeObjectKey(eventSlug, categoryFor(class), contentType, time.Now()),
		ContentType: contentType,
		MediaClass:  class,
		UploaderRef: uploaderRef,
	}

	if err := p.records.InsertPendingPhoto(ctx, photo); err != nil {
		out.Err = fmt.Errorf("create record: %w", err)
		return out
	}
	out.PhotoID = photo.ID
	out.StorageKey = photo.StorageKey

	if err := p.objects.Put(ctx, p.bucket, photo.StorageKey, item.Data, contentType); err != nil {
		out.Err = fmt.Errorf("store object: %w", err)
		return out
	}

	if class == models.MediaClassSearchable {
		// The record id is the external identifier. Search-time correlation
		// depends on this being the id, never a filename.
		indexed, err := p.faces.IndexPhoto(ctx, eventSlug, p.bucket, photo.StorageKey, photo.ID)
		if err != nil {
			out.Err = fmt.Errorf("index faces: %w", err)
			return out
		}
		out.FacesIndexed = indexed
		observability.FacesIndexed.WithLabelValues(eventSlug).Add(float64(indexed))
	}

	if err := p.records.PromotePhotoWithMetric(ctx, photo.ID, models.UsageActionUpload, eventSlug, uploaderRef); err != nil {
		out.Err = fmt.Errorf("promote record: %w", err)
		return out
	}

	observability.PhotosIngested.WithLabelValues(eventSlug, string(class)).Inc()
	slog.Info("photo ingested",
		"event", eventSlug,
		"photo_id", photo.ID,
		"key", photo.StorageKey,
		"faces", out.FacesIndexed,
	)
	return out
}

// IngestBatch processes files concurrently with a small bound. One file's
// rejection or backend error never aborts its siblings; the caller gets one
// outcome per file, in input order.
func (p *Pipeline) IngestBatch(ctx context.Context, eventSlug string, class models.MediaClass, uploaderRef *string, items []Item) []Outcome {
	outcomes := make([]Outcome, len(items))

	limit := p.limits.BatchConcurrency
	if limit <= 0 {
		limit = 4
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			outcomes[i] = p.IngestOne(gCtx, eventSlug, class, uploaderRef, item)
			return nil
		})
	}

	_ = g.Wait()
	return outcomes
}
