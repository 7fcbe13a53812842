package ingest

import (
	"fmt"
	"net/http"

	"github.com/your-org/photofind/internal/config"
	"github.com/your-org/photofind/internal/models"
)

// ValidationError marks a rejection that happened before any external call.
// Handlers report it per item; it never escalates to a service failure.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Formats a searchable photo may have. Only these reach the face backend.
var searchableTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Formats accepted for the general media class.
var generalTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"video/mp4":  true,
	"video/webm": true,
}

// ValidateUpload checks size and content signature for the media class and
// returns the sniffed content type. The declared type from the client is
// ignored; only the byte signature counts.
func ValidateUpload(data []byte, class models.MediaClass, limits config.IngestConfig) (string, error) {
	maxMB := limits.MaxMediaSizeMB
	allowed := generalTypes
	if class == models.MediaClassSearchable {
		maxMB = limits.MaxPhotoSizeMB
		allowed = searchableTypes
	}

	if len(data) == 0 {
		return "", &ValidationError{Reason: "empty file"}
	}
	if len(data) > maxMB*1024*1024 {
		return "", &ValidationError{Reason: fmt.Sprintf("file exceeds %dMB limit", maxMB)}
	}

	contentType := http.DetectContentType(data)
	if !allowed[contentType] {
		return "", &ValidationError{Reason: fmt.Sprintf("unsupported format %s", contentType)}
	}
	return contentType, nil
}
