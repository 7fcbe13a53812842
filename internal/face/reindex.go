package face

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ReindexItem pairs a stored object with the record id its faces must be
// registered under.
type ReindexItem struct {
	Key     string
	PhotoID uuid.UUID
}

// ReindexAll re-registers every item's faces with the backend, with at most
// maxConcurrent calls in flight. Used to rebuild an event's collection after
// it was lost or the provider changed. The first failure cancels the rest;
// items indexed before the failure stay indexed, so the call is safe to
// repeat.
func ReindexAll(ctx context.Context, idx Index, eventSlug, bucket string, items []ReindexItem, maxConcurrent int) (int, error) {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}

	var faces atomic.Int64
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	for _, item := range items {
		item := item
		g.Go(func() error {
			n, err := idx.IndexPhoto(gCtx, eventSlug, bucket, item.Key, item.PhotoID)
			if err != nil {
				return err
			}
			faces.Add(int64(n))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(faces.Load()), err
	}
	return int(faces.Load()), nil
}
