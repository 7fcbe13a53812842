// Package bundle assembles matched photos into one downloadable zip archive,
// cached under a content address derived from the member key set.
package bundle

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/your-org/photofind/internal/models"
	"github.com/your-org/photofind/internal/observability"
	"github.com/your-org/photofind/internal/storage"
)

// ContentAddress derives the archive's storage key from the sorted member
// key set. Identical result sets share one archive regardless of match
// order. The input slice is not modified.
func ContentAddress(keys []string) string {
	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)

	sum := sha256.Sum256([]byte(strings.Join(sorted, "\n")))
	return fmt.Sprintf("bundles/search-%x.zip", sum)
}

// Bundler downloads member objects with a bounded fan-out and streams them
// into one zip. Failed members are skipped, not fatal: the archive is
// best-effort and the BundleReady counts expose the degradation.
type Bundler struct {
	objects storage.ObjectStore
	bucket  string
	workers int
	ttl     time.Duration
}

func NewBundler(objects storage.ObjectStore, bucket string, downloadWorkers int, presignTTL time.Duration) *Bundler {
	if downloadWorkers <= 0 {
		downloadWorkers = 5
	}
	return &Bundler{
		objects: objects,
		bucket:  bucket,
		workers: downloadWorkers,
		ttl:     presignTTL,
	}
}

// Assemble builds (or reuses) the archive for a job and returns the ready
// notification. Safe to call twice with the same job: the second call finds
// the archive via Stat and skips assembly.
func (b *Bundler) Assemble(ctx context.Context, job models.BundleJob) (*models.BundleReady, error) {
	ready := &models.BundleReady{
		EventSlug:  job.EventSlug,
		ArchiveKey: job.ArchiveKey,
		Requested:  len(job.StorageKeys),
	}

	err := b.objects.Stat(ctx, b.bucket, job.ArchiveKey)
	switch {
	case err == nil:
		ready.Reused = true
		ready.Bundled = len(job.StorageKeys)
	case errors.Is(err, storage.ErrObjectNotFound):
		bundled, err := b.build(ctx, job)
		if err != nil {
			return nil, err
		}
		ready.Bundled = bundled
	default:
		return nil, fmt.Errorf("stat archive: %w", err)
	}

	url, err := b.objects.Presign(ctx, b.bucket, job.ArchiveKey, b.ttl)
	if err != nil {
		return nil, fmt.Errorf("presign archive: %w", err)
	}
	ready.URL = url
	ready.FinishedAt = time.Now()
	return ready, nil
}

func (b *Bundler) build(ctx context.Context, job models.BundleJob) (int, error) {
	type member struct {
		name string
		data []byte
	}

	var (
		mu      sync.Mutex
		members []member
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)

	for _, key := range job.StorageKeys {
		key := key
		g.Go(func() error {
			data, err := b.objects.Get(gCtx, b.bucket, key)
			if err != nil {
				// Skipped, not fatal. The member may have been deleted
				// between search and assembly.
				slog.Warn("bundle member download failed", "key", key, "error", err)
				observability.BundleMembersSkipped.Inc()
				return nil
			}
			mu.Lock()
			members = append(members, member{name: path.Base(key), data: data})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	if len(members) == 0 {
		return 0, fmt.Errorf("no bundle members could be downloaded")
	}

	// Deterministic archive layout regardless of download completion order.
	sort.Slice(members, func(i, j int) bool { return members[i].name < members[j].name })

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, m := range members {
		w, err := zw.Create(m.name)
		if err != nil {
			return 0, fmt.Errorf("create zip entry %s: %w", m.name, err)
		}
		if _, err := w.Write(m.data); err != nil {
			return 0, fmt.Errorf("write zip entry %s: %w", m.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("finalize zip: %w", err)
	}

	if err := b.objects.Put(ctx, b.bucket, job.ArchiveKey, buf.Bytes(), "application/zip"); err != nil {
		return 0, fmt.Errorf("upload archive: %w", err)
	}

	observability.BundlesAssembled.Inc()
	slog.Info("bundle assembled",
		"event", job.EventSlug,
		"key", job.ArchiveKey,
		"requested", len(job.StorageKeys),
		"bundled", len(members),
	)
	return len(members), nil
}
