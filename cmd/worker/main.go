package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/photofind/internal/bundle"
	"github.com/your-org/photofind/internal/config"
	"github.com/your-org/photofind/internal/models"
	"github.com/your-org/photofind/internal/observability"
	"github.com/your-org/photofind/internal/queue"
	"github.com/your-org/photofind/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	metricsPort := flag.Int("metrics-port", 9091, "prometheus metrics port")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting photofind bundle worker",
		"workers", cfg.Bundle.ConsumerWorkers,
		"download_workers", cfg.Bundle.DownloadWorkers,
	)

	objects, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		slog.Error("create object store", "error", err)
		os.Exit(1)
	}

	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	bundler := bundle.NewBundler(objects, cfg.Storage.Bucket, cfg.Bundle.DownloadWorkers, cfg.Bundle.ArchiveTTL)

	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = consumer.ConsumeBundleJobs(ctx, "bundle-workers", func(ctx context.Context, msg jetstream.Msg) error {
		var job models.BundleJob
		if err := json.Unmarshal(msg.Data(), &job); err != nil {
			slog.Error("unmarshal bundle job", "error", err)
			return nil // Don't retry on unmarshal errors
		}

		ready, err := bundler.Assemble(ctx, job)
		if err != nil {
			return fmt.Errorf("assemble bundle %s: %w", job.ArchiveKey, err)
		}

		if err := producer.PublishBundleReady(ctx, *ready); err != nil {
			slog.Error("publish bundle ready", "key", job.ArchiveKey, "error", err)
		}
		return nil
	}, cfg.Bundle.ConsumerWorkers)
	if err != nil {
		slog.Error("start bundle job consumer", "error", err)
		os.Exit(1)
	}

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", *metricsPort)
		slog.Info("worker metrics listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Warn("metrics server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down bundle worker...")
	cancel()
	slog.Info("bundle worker stopped")
}
