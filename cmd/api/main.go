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
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/photofind/internal/api"
	"github.com/your-org/photofind/internal/api/ws"
	"github.com/your-org/photofind/internal/config"
	"github.com/your-org/photofind/internal/face"
	"github.com/your-org/photofind/internal/ingest"
	"github.com/your-org/photofind/internal/models"
	"github.com/your-org/photofind/internal/observability"
	"github.com/your-org/photofind/internal/queue"
	"github.com/your-org/photofind/internal/search"
	"github.com/your-org/photofind/internal/storage"
	"github.com/your-org/photofind/pkg/dto"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting photofind API service",
		"port", cfg.Server.Port,
		"storage_provider", cfg.Storage.Provider,
		"face_provider", cfg.Face.Provider,
	)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.EnsureSchema(context.Background()); err != nil {
		slog.Error("ensure schema", "error", err)
		os.Exit(1)
	}

	// Object store: the provider choice is fixed here for the process
	// lifetime.
	objects, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		slog.Error("create object store", "error", err)
		os.Exit(1)
	}
	if ms, ok := objects.(*storage.MinIOStore); ok {
		if err := ms.EnsureBucket(context.Background(), cfg.Storage.Bucket); err != nil {
			slog.Warn("ensure bucket", "error", err)
		}
	}

	// Face backend
	faces, err := face.NewIndex(cfg.Face, objects)
	if err != nil {
		slog.Error("create face index", "error", err)
		os.Exit(1)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Broadcast bundle-ready events from the worker to WebSocket clients
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create event consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = consumer.ConsumeBundleEvents(ctx, "api-bundle-events", func(ctx context.Context, msg jetstream.Msg) error {
		var ready models.BundleReady
		if err := json.Unmarshal(msg.Data(), &ready); err != nil {
			return err
		}

		hub.BroadcastEvent(&dto.WSEvent{
			Type:      "bundle_ready",
			EventSlug: ready.EventSlug,
			Data:      ready,
		})
		return nil
	})
	if err != nil {
		slog.Warn("start bundle event consumer", "error", err)
	}

	// Pipelines
	ingestPipeline := ingest.NewPipeline(objects, faces, db, cfg.Storage.Bucket, cfg.Ingest)
	searchPipeline := search.NewPipeline(objects, faces, db, producer,
		cfg.Storage.Bucket, cfg.Ingest, cfg.Search, cfg.Storage.PresignTTL)

	// Setup router
	router := api.NewRouter(api.RouterConfig{
		APIKey:      cfg.Server.APIKey,
		DB:          db,
		Objects:     objects,
		Faces:       faces,
		Bucket:      cfg.Storage.Bucket,
		Producer:    producer,
		Hub:         hub,
		Ingest:      ingestPipeline,
		Search:      searchPipeline,
		Concurrency: cfg.Ingest.BatchConcurrency,
	})

	// Start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}
