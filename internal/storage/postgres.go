package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/your-org/photofind/internal/config"
	"github.com/your-org/photofind/internal/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureSchema creates the tables this service owns if they don't exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS photos (
			id UUID PRIMARY KEY,
			event_slug TEXT NOT NULL,
			storage_key TEXT NOT NULL,
			content_type TEXT NOT NULL,
			media_class TEXT NOT NULL,
			uploader_ref TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_photos_event ON photos (event_slug);
		CREATE INDEX IF NOT EXISTS idx_photos_status ON photos (status);

		CREATE TABLE IF NOT EXISTS usage_metrics (
			id UUID PRIMARY KEY,
			action TEXT NOT NULL,
			event_slug TEXT NOT NULL,
			uploader_ref TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_usage_metrics_event ON usage_metrics (event_slug, action);
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// --- Photos ---

// InsertPendingPhoto writes the record before any external call is made. A
// pending row that never gets promoted marks an ingestion that failed midway;
// the reconciliation sweep picks those up.
func (s *PostgresStore) InsertPendingPhoto(ctx context.Context, p *models.Photo) error {
	p.Status = models.PhotoStatusPending
	err := s.pool.QueryRow(ctx,
		`INSERT INTO photos (id, event_slug, storage_key, content_type, media_class, uploader_ref, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`,
		p.ID, p.EventSlug, p.StorageKey, p.ContentType, p.MediaClass, p.UploaderRef, p.Status,
	).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert pending photo: %w", err)
	}
	return nil
}

// PromotePhotoWithMetric flips the record to active and records the usage
// metric in one transaction, so a promoted photo always has its metric row.
func (s *PostgresStore) PromotePhotoWithMetric(ctx context.Context, photoID uuid.UUID, action models.UsageAction, eventSlug string, uploaderRef *string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE photos SET status = $1 WHERE id = $2`,
		models.PhotoStatusActive, photoID); err != nil {
		return fmt.Errorf("promote photo: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO usage_metrics (id, action, event_slug, uploader_ref) VALUES ($1, $2, $3, $4)`,
		uuid.New(), action, eventSlug, uploaderRef); err != nil {
		return fmt.Errorf("insert usage metric: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetActiveByIDs resolves match identifiers to records in one set-membership
// query. IDs without an active row are simply absent from the result.
func (s *PostgresStore) GetActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Photo, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, event_slug, storage_key, content_type, media_class, uploader_ref, status, created_at
		 FROM photos WHERE id = ANY($1) AND status = $2`,
		ids, models.PhotoStatusActive)
	if err != nil {
		return nil, fmt.Errorf("get photos by ids: %w", err)
	}
	defer rows.Close()

	var photos []models.Photo
	for rows.Next() {
		var p models.Photo
		if err := rows.Scan(&p.ID, &p.EventSlug, &p.StorageKey, &p.ContentType,
			&p.MediaClass, &p.UploaderRef, &p.Status, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, p)
	}
	return photos, nil
}

// ListPendingPhotos returns pending records for the reconciliation sweep.
func (s *PostgresStore) ListPendingPhotos(ctx context.Context, eventSlug string) ([]models.Photo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, event_slug, storage_key, content_type, media_class, uploader_ref, status, created_at
		 FROM photos WHERE event_slug = $1 AND status = $2 ORDER BY created_at`,
		eventSlug, models.PhotoStatusPending)
	if err != nil {
		return nil, fmt.Errorf("list pending photos: %w", err)
	}
	defer rows.Close()

	var photos []models.Photo
	for rows.Next() {
		var p models.Photo
		if err := rows.Scan(&p.ID, &p.EventSlug, &p.StorageKey, &p.ContentType,
			&p.MediaClass, &p.UploaderRef, &p.Status, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, p)
	}
	return photos, nil
}

// DeletePhoto removes a record and reports the storage key it pointed at, so
// the caller can remove the object as well. Deleting an absent row is a
// no-op returning an empty key. The face-backend entry cannot be retracted;
// search filters it out.
func (s *PostgresStore) DeletePhoto(ctx context.Context, id uuid.UUID) (string, error) {
	var key string
	err := s.pool.QueryRow(ctx, `DELETE FROM photos WHERE id = $1 RETURNING storage_key`, id).Scan(&key)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("delete photo: %w", err)
	}
	return key, nil
}

// GetActiveByKeys resolves storage keys back to their active records. Keys
// with no live record are silently absent from the result.
func (s *PostgresStore) GetActiveByKeys(ctx context.Context, keys []string) ([]models.Photo, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, event_slug, storage_key, content_type, media_class, uploader_ref, status, created_at
		 FROM photos WHERE storage_key = ANY($1) AND status = $2`,
		keys, models.PhotoStatusActive)
	if err != nil {
		return nil, fmt.Errorf("get photos by keys: %w", err)
	}
	defer rows.Close()

	var photos []models.Photo
	for rows.Next() {
		var p models.Photo
		if err := rows.Scan(&p.ID, &p.EventSlug, &p.StorageKey, &p.ContentType,
			&p.MediaClass, &p.UploaderRef, &p.Status, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, p)
	}
	return photos, nil
}

// --- Usage metrics ---

// TrackUsage records a usage row outside any surrounding transaction.
func (s *PostgresStore) TrackUsage(ctx context.Context, action models.UsageAction, eventSlug string, uploaderRef *string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO usage_metrics (id, action, event_slug, uploader_ref) VALUES ($1, $2, $3, $4)`,
		uuid.New(), action, eventSlug, uploaderRef)
	if err != nil {
		return fmt.Errorf("track usage: %w", err)
	}
	return nil
}
