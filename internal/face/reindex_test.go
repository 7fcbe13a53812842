package face

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

// stubIndex counts IndexPhoto calls and tracks how many run at once.
type stubIndex struct {
	mu        sync.Mutex
	indexed   map[string]uuid.UUID
	inflight  atomic.Int32
	peak      atomic.Int32
	failOnKey string
}

func newStubIndex() *stubIndex {
	return &stubIndex{indexed: make(map[string]uuid.UUID)}
}

func (s *stubIndex) EnsureCollection(_ context.Context, eventSlug string) (string, error) {
	return "evt-" + eventSlug, nil
}

func (s *stubIndex) IndexPhoto(_ context.Context, _, _, key string, photoID uuid.UUID) (int, error) {
	cur := s.inflight.Add(1)
	for {
		peak := s.peak.Load()
		if cur <= peak || s.peak.CompareAndSwap(peak, cur) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	defer s.inflight.Add(-1)

	if key == s.failOnKey {
		return 0, errors.New("backend rejected image")
	}
	s.mu.Lock()
	s.indexed[key] = photoID
	s.mu.Unlock()
	return 2, nil
}

func (s *stubIndex) Search(context.Context, string, []byte, int, float32) ([]Match, error) {
	return nil, nil
}

func reindexItems(n int) []ReindexItem {
	items := make([]ReindexItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, ReindexItem{
			Key:     "demo/photos/" + uuid.New().String() + ".jpg",
			PhotoID: uuid.New(),
		})
	}
	return items
}

func TestReindexAll_IndexesEveryItemUnderItsRecordID(t *testing.T) {
	idx := newStubIndex()
	items := reindexItems(6)

	faces, err := ReindexAll(context.Background(), idx, "demo", "raw", items, 3)
	if err != nil {
		t.Fatalf("ReindexAll: %v", err)
	}
	if faces != 12 {
		t.Errorf("faces = %d; want 12", faces)
	}
	for _, item := range items {
		got, ok := idx.indexed[item.Key]
		if !ok {
			t.Errorf("item %q never indexed", item.Key)
			continue
		}
		if got != item.PhotoID {
			t.Errorf("item %q indexed under %s; want %s", item.Key, got, item.PhotoID)
		}
	}
}

func TestReindexAll_HonorsConcurrencyBound(t *testing.T) {
	idx := newStubIndex()

	if _, err := ReindexAll(context.Background(), idx, "demo", "raw", reindexItems(10), 2); err != nil {
		t.Fatalf("ReindexAll: %v", err)
	}
	if peak := idx.peak.Load(); peak > 2 {
		t.Errorf("observed %d concurrent index calls; bound is 2", peak)
	}
}

func TestReindexAll_PropagatesFailure(t *testing.T) {
	idx := newStubIndex()
	items := reindexItems(4)
	idx.failOnKey = items[2].Key

	if _, err := ReindexAll(context.Background(), idx, "demo", "raw", items, 1); err == nil {
		t.Fatal("expected the backend failure to surface")
	}
}

func TestReindexAll_EmptySet(t *testing.T) {
	faces, err := ReindexAll(context.Background(), newStubIndex(), "demo", "raw", nil, 4)
	if err != nil {
		t.Fatalf("ReindexAll: %v", err)
	}
	if faces != 0 {
		t.Errorf("faces = %d; want 0", faces)
	}
}
