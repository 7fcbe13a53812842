package models

import (
	"time"

	"github.com/google/uuid"
)

type UsageAction string

const (
	UsageActionUpload UsageAction = "upload_photo"
	UsageActionSearch UsageAction = "search"
	UsageActionBundle UsageAction = "bundle"
)

// UsageMetric is one usage-tracking row. UploaderRef comes from the auth
// collaborator and is carried as an opaque tag.
type UsageMetric struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	Action      UsageAction `json:"action" db:"action"`
	EventSlug   string      `json:"event_slug" db:"event_slug"`
	UploaderRef *string     `json:"uploader_ref,omitempty" db:"uploader_ref"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
}
