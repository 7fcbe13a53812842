package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/photofind/internal/queue"
	"github.com/your-org/photofind/internal/storage"
)

type SystemHandler struct {
	db       *storage.PostgresStore
	objects  storage.ObjectStore
	bucket   string
	producer *queue.Producer
}

func NewSystemHandler(db *storage.PostgresStore, objects storage.ObjectStore, bucket string, producer *queue.Producer) *SystemHandler {
	return &SystemHandler{db: db, objects: objects, bucket: bucket, producer: producer}
}

func (h *SystemHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *SystemHandler) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	// Check Postgres
	if err := h.db.Ping(ctx); err != nil {
		checks["postgres"] = err.Error()
		healthy = false
	} else {
		checks["postgres"] = "ok"
	}

	// Check object store: listing under an empty-ish prefix is the cheapest
	// call both providers support.
	if _, err := h.objects.List(ctx, h.bucket, "readyz-probe/"); err != nil {
		checks["object_store"] = err.Error()
		healthy = false
	} else {
		checks["object_store"] = "ok"
	}

	// Check NATS
	if err := h.producer.Ping(); err != nil {
		checks["nats"] = err.Error()
		healthy = false
	} else {
		checks["nats"] = "ok"
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status": map[bool]string{true: "ready", false: "not ready"}[healthy],
		"checks": checks,
	})
}
