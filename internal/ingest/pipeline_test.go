package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/photofind/internal/config"
	"github.com/your-org/photofind/internal/face"
	"github.com/your-org/photofind/internal/models"
	"github.com/your-org/photofind/internal/storage"
)

type fakeObjects struct {
	mu   sync.Mutex
	puts map[string][]byte
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{puts: make(map[string][]byte)}
}

func (f *fakeObjects) Put(_ context.Context, bucket, key string, data []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts[bucket+"/"+key] = data
	return nil
}

func (f *fakeObjects) Get(_ context.Context, bucket, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.puts[bucket+"/"+key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return data, nil
}

func (f *fakeObjects) Presign(_ context.Context, bucket, key string, _ time.Duration) (string, error) {
	return "https://signed.example/" + bucket + "/" + key, nil
}

func (f *fakeObjects) List(context.Context, string, string) ([]string, error) { return nil, nil }

func (f *fakeObjects) Stat(_ context.Context, bucket, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.puts[bucket+"/"+key]; !ok {
		return storage.ErrObjectNotFound
	}
	return nil
}

func (f *fakeObjects) Delete(_ context.Context, bucket, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.puts, bucket+"/"+key)
	return nil
}

type indexedCall struct {
	eventSlug string
	key       string
	photoID   uuid.UUID
}

type fakeFaces struct {
	mu       sync.Mutex
	calls    []indexedCall
	faces    int
	indexErr error
	delay    time.Duration
	inflight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeFaces) EnsureCollection(_ context.Context, eventSlug string) (string, error) {
	return "evt-" + eventSlug, nil
}

func (f *fakeFaces) IndexPhoto(_ context.Context, eventSlug, _, key string, photoID uuid.UUID) (int, error) {
	cur := f.inflight.Add(1)
	for {
		peak := f.peak.Load()
		if cur <= peak || f.peak.CompareAndSwap(peak, cur) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	defer f.inflight.Add(-1)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.indexErr != nil {
		return 0, f.indexErr
	}
	f.calls = append(f.calls, indexedCall{eventSlug: eventSlug, key: key, photoID: photoID})
	return f.faces, nil
}

func (f *fakeFaces) Search(context.Context, string, []byte, int, float32) ([]face.Match, error) {
	return nil, nil
}

type fakeRecords struct {
	mu        sync.Mutex
	pending   []*models.Photo
	promoted  []uuid.UUID
	insertErr error
}

func (f *fakeRecords) InsertPendingPhoto(_ context.Context, p *models.Photo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	p.Status = models.PhotoStatusPending
	cp := *p
	f.pending = append(f.pending, &cp)
	return nil
}

func (f *fakeRecords) PromotePhotoWithMetric(_ context.Context, photoID uuid.UUID, _ models.UsageAction, _ string, _ *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.promoted = append(f.promoted, photoID)
	return nil
}

func newTestPipeline(objects *fakeObjects, faces *fakeFaces, records *fakeRecords) *Pipeline {
	return NewPipeline(objects, faces, records, "raw", testLimits)
}

func TestIngestOne_IndexesUnderRecordID(t *testing.T) {
	objects := newFakeObjects()
	faces := &fakeFaces{faces: 3}
	records := &fakeRecords{}
	p := newTestPipeline(objects, faces, records)

	out := p.IngestOne(context.Background(), "demo", models.MediaClassSearchable, nil,
		Item{Filename: "group shot.jpg", Data: encodeJPEG(t)})
	if out.Err != nil {
		t.Fatalf("IngestOne: %v", out.Err)
	}
	if out.FacesIndexed != 3 {
		t.Errorf("faces indexed = %d; want 3", out.FacesIndexed)
	}

	if len(faces.calls) != 1 {
		t.Fatalf("expected one index call, got %d", len(faces.calls))
	}
	call := faces.calls[0]
	if call.photoID != out.PhotoID {
		t.Errorf("indexed under %s; want the record id %s", call.photoID, out.PhotoID)
	}
	if strings.Contains(call.key, "group shot") {
		t.Errorf("storage key %q leaks the client filename", call.key)
	}

	if len(records.pending) != 1 || records.pending[0].Status != models.PhotoStatusPending {
		t.Fatalf("pending record not written first: %+v", records.pending)
	}
	if len(records.promoted) != 1 || records.promoted[0] != out.PhotoID {
		t.Errorf("record not promoted: %v", records.promoted)
	}
	if _, ok := objects.puts["raw/"+out.StorageKey]; !ok {
		t.Errorf("object not stored at %q", out.StorageKey)
	}
}

func TestIngestOne_ZeroFacesStillSucceeds(t *testing.T) {
	objects := newFakeObjects()
	faces := &fakeFaces{faces: 0}
	records := &fakeRecords{}
	p := newTestPipeline(objects, faces, records)

	out := p.IngestOne(context.Background(), "demo", models.MediaClassSearchable, nil,
		Item{Filename: "landscape.jpg", Data: encodeJPEG(t)})
	if out.Err != nil {
		t.Fatalf("face-free photo must ingest cleanly: %v", out.Err)
	}
	if len(records.promoted) != 1 {
		t.Error("face-free photo should still be promoted")
	}
}

func TestIngestOne_GeneralClassSkipsIndexing(t *testing.T) {
	objects := newFakeObjects()
	faces := &fakeFaces{faces: 5}
	records := &fakeRecords{}
	p := newTestPipeline(objects, faces, records)

	out := p.IngestOne(context.Background(), "demo", models.MediaClassGeneral, nil,
		Item{Filename: "clip.gif", Data: []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00")})
	if out.Err != nil {
		t.Fatalf("IngestOne: %v", out.Err)
	}
	if len(faces.calls) != 0 {
		t.Errorf("general media must not reach the face backend, got %d calls", len(faces.calls))
	}
	if out.FacesIndexed != 0 {
		t.Errorf("faces indexed = %d; want 0", out.FacesIndexed)
	}
}

func TestIngestOne_ValidationStopsBeforeExternalCalls(t *testing.T) {
	objects := newFakeObjects()
	faces := &fakeFaces{}
	records := &fakeRecords{}
	p := newTestPipeline(objects, faces, records)

	out := p.IngestOne(context.Background(), "demo", models.MediaClassSearchable, nil,
		Item{Filename: "notes.txt", Data: []byte("plain text")})

	var verr *ValidationError
	if !errors.As(out.Err, &verr) {
		t.Fatalf("expected ValidationError, got %v", out.Err)
	}
	if len(records.pending) != 0 || len(objects.puts) != 0 || len(faces.calls) != 0 {
		t.Error("rejected upload must not touch the record store, object store, or face backend")
	}
}

func TestIngestBatch_IsolatesFailures(t *testing.T) {
	objects := newFakeObjects()
	faces := &fakeFaces{faces: 1}
	records := &fakeRecords{}
	p := newTestPipeline(objects, faces, records)

	items := []Item{
		{Filename: "a.jpg", Data: encodeJPEG(t)},
		{Filename: "bad.txt", Data: []byte("plain text")},
		{Filename: "c.jpg", Data: encodeJPEG(t)},
	}
	outcomes := p.IngestBatch(context.Background(), "demo", models.MediaClassSearchable, nil, items)

	if len(outcomes) != len(items) {
		t.Fatalf("got %d outcomes for %d items", len(outcomes), len(items))
	}
	for i, out := range outcomes {
		if out.Filename != items[i].Filename {
			t.Errorf("outcome %d is for %q; want %q", i, out.Filename, items[i].Filename)
		}
	}
	if outcomes[0].Err != nil || outcomes[2].Err != nil {
		t.Errorf("good files failed alongside a bad sibling: %v / %v", outcomes[0].Err, outcomes[2].Err)
	}
	if outcomes[1].Err == nil {
		t.Error("bad file should carry its own error")
	}
	if len(records.promoted) != 2 {
		t.Errorf("promoted = %d records; want 2", len(records.promoted))
	}
}

func TestIngestBatch_HonorsConfiguredBound(t *testing.T) {
	objects := newFakeObjects()
	faces := &fakeFaces{faces: 1, delay: 5 * time.Millisecond}
	records := &fakeRecords{}
	limits := config.IngestConfig{MaxPhotoSizeMB: 15, MaxMediaSizeMB: 50, BatchConcurrency: 2}
	p := NewPipeline(objects, faces, records, "raw", limits)

	items := make([]Item, 0, 8)
	for i := 0; i < 8; i++ {
		items = append(items, Item{Filename: "a.jpg", Data: encodeJPEG(t)})
	}
	outcomes := p.IngestBatch(context.Background(), "demo", models.MediaClassSearchable, nil, items)

	for _, out := range outcomes {
		if out.Err != nil {
			t.Fatalf("ingest: %v", out.Err)
		}
	}
	if peak := faces.peak.Load(); peak > 2 {
		t.Errorf("observed %d concurrent index calls; configured bound is 2", peak)
	}
}

func TestIngestOne_BackendFailureLeavesPendingRecord(t *testing.T) {
	objects := newFakeObjects()
	faces := &fakeFaces{indexErr: errors.New("backend down")}
	records := &fakeRecords{}
	p := newTestPipeline(objects, faces, records)

	out := p.IngestOne(context.Background(), "demo", models.MediaClassSearchable, nil,
		Item{Filename: "a.jpg", Data: encodeJPEG(t)})
	if out.Err == nil {
		t.Fatal("expected indexing failure to surface")
	}
	if len(records.pending) != 1 {
		t.Fatal("pending record should exist for reconciliation")
	}
	if len(records.promoted) != 0 {
		t.Error("failed ingestion must not be promoted")
	}
}
