package models

import "time"

// BundleJob is the message published to NATS when a search asks for an
// archive. The archive key is content-addressed, so the job is safe to
// redeliver: a second assembly of the same key set is a no-op.
type BundleJob struct {
	EventSlug   string    `json:"event_slug"`
	ArchiveKey  string    `json:"archive_key"`
	StorageKeys []string  `json:"storage_keys"`
	RequestedAt time.Time `json:"requested_at"`
}

// BundleReady is emitted by the worker once an archive is uploaded. Requested
// vs Bundled exposes a degraded archive (members whose download failed are
// skipped, not fatal).
type BundleReady struct {
	EventSlug  string    `json:"event_slug"`
	ArchiveKey string    `json:"archive_key"`
	URL        string    `json:"url"`
	Requested  int       `json:"requested"`
	Bundled    int       `json:"bundled"`
	Reused     bool      `json:"reused"`
	FinishedAt time.Time `json:"finished_at"`
}
