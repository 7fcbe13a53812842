package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/photofind/internal/auth"
	"github.com/your-org/photofind/internal/ingest"
	"github.com/your-org/photofind/internal/search"
	"github.com/your-org/photofind/pkg/dto"
)

type SearchHandler struct {
	pipeline *search.Pipeline
}

func NewSearchHandler(pipeline *search.Pipeline) *SearchHandler {
	return &SearchHandler{pipeline: pipeline}
}

// Search matches a probe selfie against an event's photo pool. Zero matches
// is a success with an empty list.
func (h *SearchHandler) Search(c *gin.Context) {
	eventSlug := c.Param("event")

	file, _, err := c.Request.FormFile("selfie")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "selfie file required"})
		return
	}
	defer file.Close()

	probe, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read selfie: " + err.Error()})
		return
	}

	wantBundle := c.Query("bundle") == "true" || c.PostForm("bundle") == "true"

	result, err := h.pipeline.Search(c.Request.Context(), eventSlug, probe, wantBundle, auth.UploaderRef(c))
	if err != nil {
		var vErr *ingest.ValidationError
		if errors.As(err, &vErr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": vErr.Reason})
			return
		}
		// Anything past validation is an integration failure with an
		// external provider.
		c.JSON(http.StatusBadGateway, gin.H{"error": "search backend failure: " + err.Error()})
		return
	}

	resp := dto.SearchResponse{
		Count:     result.Count,
		Items:     make([]dto.SearchItem, 0, len(result.Items)),
		BundleURL: result.BundleURL,
	}
	for _, item := range result.Items {
		resp.Items = append(resp.Items, dto.SearchItem{Key: item.Key, URL: item.URL})
	}

	c.JSON(http.StatusOK, resp)
}
