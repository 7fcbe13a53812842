package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/photofind/internal/api/handlers"
	"github.com/your-org/photofind/internal/api/ws"
	"github.com/your-org/photofind/internal/auth"
	"github.com/your-org/photofind/internal/face"
	"github.com/your-org/photofind/internal/ingest"
	"github.com/your-org/photofind/internal/queue"
	"github.com/your-org/photofind/internal/search"
	"github.com/your-org/photofind/internal/storage"
)

type RouterConfig struct {
	APIKey      string
	DB          *storage.PostgresStore
	Objects     storage.ObjectStore
	Faces       face.Index
	Bucket      string
	Producer    *queue.Producer
	Hub         *ws.Hub
	Ingest      *ingest.Pipeline
	Search      *search.Pipeline
	Concurrency int // bound on reindex fan-out
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.Objects, cfg.Bucket, cfg.Producer)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket: bundle-ready notifications
	v1.GET("/ws", cfg.Hub.HandleWS)

	ingestH := handlers.NewIngestHandler(cfg.Ingest)
	v1.POST("/events/:event/photos", ingestH.Upload)

	photosH := handlers.NewPhotosHandler(cfg.DB, cfg.Objects, cfg.Faces, cfg.Bucket, cfg.Concurrency)
	v1.DELETE("/events/:event/photos/:id", photosH.Delete)
	v1.GET("/events/:event/photos/pending", photosH.ListPending)
	v1.POST("/events/:event/reindex", photosH.Reindex)

	searchH := handlers.NewSearchHandler(cfg.Search)
	v1.POST("/events/:event/search", searchH.Search)

	return r
}
