package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/photofind/internal/auth"
	"github.com/your-org/photofind/internal/ingest"
	"github.com/your-org/photofind/internal/models"
	"github.com/your-org/photofind/pkg/dto"
)

type IngestHandler struct {
	pipeline *ingest.Pipeline
}

func NewIngestHandler(pipeline *ingest.Pipeline) *IngestHandler {
	return &IngestHandler{pipeline: pipeline}
}

// Upload accepts one or more files for an event and returns a per-file
// outcome summary. One bad file never aborts its siblings.
func (h *IngestHandler) Upload(c *gin.Context) {
	eventSlug := c.Param("event")

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form required"})
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one file required"})
		return
	}

	class := models.MediaClassSearchable
	if v := c.PostForm("media_class"); v != "" {
		switch models.MediaClass(v) {
		case models.MediaClassSearchable, models.MediaClassGeneral:
			class = models.MediaClass(v)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid media_class"})
			return
		}
	}

	items := make([]ingest.Item, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "read upload: " + err.Error()})
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "read upload: " + err.Error()})
			return
		}
		items = append(items, ingest.Item{Filename: fh.Filename, Data: data})
	}

	outcomes := h.pipeline.IngestBatch(c.Request.Context(), eventSlug, class, auth.UploaderRef(c), items)

	resp := dto.IngestResponse{Items: make([]dto.IngestItemResult, 0, len(outcomes))}
	for _, out := range outcomes {
		item := dto.IngestItemResult{Filename: out.Filename}
		if out.Err != nil {
			item.Error = out.Err.Error()
			resp.Failed++
		} else {
			item.Key = out.StorageKey
			item.PhotoID = out.PhotoID.String()
			item.FacesIndexed = out.FacesIndexed
			resp.Uploaded++
		}
		resp.Items = append(resp.Items, item)
	}

	c.JSON(http.StatusOK, resp)
}
