package models

import (
	"time"

	"github.com/google/uuid"
)

// MediaClass determines validation rules and whether a file is indexed for
// faces. Only searchable photos reach the face backend.
type MediaClass string

const (
	MediaClassSearchable MediaClass = "searchable"
	MediaClassGeneral    MediaClass = "general"
)

type PhotoStatus string

const (
	// PhotoStatusPending marks a record written before the object-store and
	// face-backend calls. A pending row with no object behind it is an
	// orphan left by a failed ingestion.
	PhotoStatusPending PhotoStatus = "pending"
	PhotoStatusActive  PhotoStatus = "active"
)

// Photo is the relational record for one stored photo. Its ID doubles as the
// external identifier registered with the face backend, which is what lets a
// search match be resolved back to this row with a plain equality lookup.
type Photo struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	EventSlug   string      `json:"event_slug" db:"event_slug"`
	StorageKey  string      `json:"storage_key" db:"storage_key"`
	ContentType string      `json:"content_type" db:"content_type"`
	MediaClass  MediaClass  `json:"media_class" db:"media_class"`
	UploaderRef *string     `json:"uploader_ref,omitempty" db:"uploader_ref"`
	Status      PhotoStatus `json:"status" db:"status"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
}
