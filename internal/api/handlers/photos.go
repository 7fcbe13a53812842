package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/photofind/internal/face"
	"github.com/your-org/photofind/internal/models"
	"github.com/your-org/photofind/internal/storage"
)

// PhotoRecordStore is the slice of the relational store the photo-management
// boundary needs.
type PhotoRecordStore interface {
	DeletePhoto(ctx context.Context, id uuid.UUID) (string, error)
	ListPendingPhotos(ctx context.Context, eventSlug string) ([]models.Photo, error)
	GetActiveByKeys(ctx context.Context, keys []string) ([]models.Photo, error)
}

type PhotosHandler struct {
	records     PhotoRecordStore
	objects     storage.ObjectStore
	faces       face.Index
	bucket      string
	concurrency int
}

func NewPhotosHandler(records PhotoRecordStore, objects storage.ObjectStore, faces face.Index, bucket string, concurrency int) *PhotosHandler {
	return &PhotosHandler{
		records:     records,
		objects:     objects,
		faces:       faces,
		bucket:      bucket,
		concurrency: concurrency,
	}
}

// Delete removes the photo record and its stored object. The face-backend
// entry cannot be retracted; search drops the now-unresolvable match instead.
// Deleting an absent id succeeds, so the call is safe to retry.
func (h *PhotosHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid photo id"})
		return
	}

	key, err := h.records.DeletePhoto(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if key != "" {
		if err := h.objects.Delete(c.Request.Context(), h.bucket, key); err != nil {
			// The row is already gone; the object is an orphan until this is
			// retried out of band.
			slog.Error("delete photo object", "key", key, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "record removed but object deletion failed"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id.String()})
}

// ListPending reports records stuck in pending for an event: ingestions that
// failed between the record insert and promotion.
func (h *PhotosHandler) ListPending(c *gin.Context) {
	photos, err := h.records.ListPendingPhotos(c.Request.Context(), c.Param("event"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(photos), "photos": photos})
}

// Reindex re-registers every stored photo of the event with the face
// backend, each under its record id. Used to rebuild a collection the
// backend lost, or after switching providers.
func (h *PhotosHandler) Reindex(c *gin.Context) {
	eventSlug := c.Param("event")
	ctx := c.Request.Context()

	keys, err := h.objects.List(ctx, h.bucket, eventSlug+"/photos/")
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "list objects: " + err.Error()})
		return
	}
	photos, err := h.records.GetActiveByKeys(ctx, keys)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	items := make([]face.ReindexItem, 0, len(photos))
	for _, p := range photos {
		items = append(items, face.ReindexItem{Key: p.StorageKey, PhotoID: p.ID})
	}

	faces, err := face.ReindexAll(ctx, h.faces, eventSlug, h.bucket, items, h.concurrency)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":         "reindex: " + err.Error(),
			"faces_indexed": faces,
		})
		return
	}

	slog.Info("event reindexed", "event", eventSlug, "photos", len(items), "faces", faces)
	c.JSON(http.StatusOK, gin.H{"photos": len(items), "faces": faces})
}
