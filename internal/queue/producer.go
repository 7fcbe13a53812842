package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/photofind/internal/models"
)

const (
	BundlesStreamName  = "BUNDLES"
	BundlesSubjectBase = "bundles"
	EventsStreamName   = "EVENTS"
	EventsSubjectBase  = "events"
)

type Producer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewProducer(natsURL string) (*Producer, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &Producer{nc: nc, js: js}, nil
}

// EnsureStreams creates JetStream streams if they don't exist.
// Retries up to 30 times (1s apart) to handle NATS startup delay.
func (p *Producer) EnsureStreams(ctx context.Context) error {
	streams := []jetstream.StreamConfig{
		{
			Name:        BundlesStreamName,
			Subjects:    []string{BundlesSubjectBase + ".>"},
			Retention:   jetstream.WorkQueuePolicy,
			MaxAge:      30 * time.Minute,
			MaxMsgs:     10000,
			Storage:     jetstream.FileStorage,
			Discard:     jetstream.DiscardOld,
			Duplicates:  30 * time.Second,
			Description: "Archive-assembly jobs for bundle workers",
		},
		{
			Name:        EventsStreamName,
			Subjects:    []string{EventsSubjectBase + ".>"},
			Retention:   jetstream.InterestPolicy,
			MaxAge:      time.Hour,
			MaxMsgs:     100000,
			Storage:     jetstream.FileStorage,
			Description: "Bundle-ready notifications",
		},
	}

	const maxAttempts = 30
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		allOK := true
		for _, cfg := range streams {
			opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			_, err := p.js.CreateOrUpdateStream(opCtx, cfg)
			cancel()
			if err != nil {
				allOK = false
				if attempt == maxAttempts {
					return fmt.Errorf("create stream %s: %w (after %d attempts)", cfg.Name, err, maxAttempts)
				}
				slog.Warn("ensure NATS stream (retrying...)", "name", cfg.Name, "attempt", attempt, "error", err)
				break
			}
			slog.Info("ensured NATS stream", "name", cfg.Name)
		}
		if allOK {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}
	return nil
}

// PublishBundleJob queues an archive-assembly job for the worker.
func (p *Producer) PublishBundleJob(ctx context.Context, job models.BundleJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal bundle job: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", BundlesSubjectBase, job.EventSlug)
	// The archive key is content-addressed; use it as the dedup id so a
	// double-submitted result set queues one job.
	_, err = p.js.Publish(ctx, subject, payload, jetstream.WithMsgID(job.ArchiveKey))
	if err != nil {
		return fmt.Errorf("publish bundle job: %w", err)
	}
	return nil
}

// PublishBundleReady announces a finished archive.
func (p *Producer) PublishBundleReady(ctx context.Context, ready models.BundleReady) error {
	payload, err := json.Marshal(ready)
	if err != nil {
		return fmt.Errorf("marshal bundle ready: %w", err)
	}

	subject := fmt.Sprintf("%s.bundle.%s", EventsSubjectBase, ready.EventSlug)
	_, err = p.js.Publish(ctx, subject, payload)
	if err != nil {
		return fmt.Errorf("publish bundle ready: %w", err)
	}
	return nil
}

// QueueDepth returns the number of pending jobs in the BUNDLES stream.
func (p *Producer) QueueDepth(ctx context.Context) (uint64, error) {
	stream, err := p.js.Stream(ctx, BundlesStreamName)
	if err != nil {
		return 0, err
	}
	info, err := stream.Info(ctx)
	if err != nil {
		return 0, err
	}
	return info.State.Msgs, nil
}

func (p *Producer) Ping() error {
	if !p.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (p *Producer) Close() {
	p.nc.Close()
}
