package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PhotosIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "photofind",
		Name:      "photos_ingested_total",
		Help:      "Total number of photos accepted by ingestion",
	}, []string{"event", "media_class"})

	PhotosRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "photofind",
		Name:      "photos_rejected_total",
		Help:      "Total number of uploads rejected by validation",
	}, []string{"event", "reason"})

	FacesIndexed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "photofind",
		Name:      "faces_indexed_total",
		Help:      "Total number of faces registered with the face backend",
	}, []string{"event"})

	Searches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "photofind",
		Name:      "searches_total",
		Help:      "Total number of selfie searches",
	}, []string{"event"})

	SearchMatches = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "photofind",
		Name:      "search_matches",
		Help:      "Number of matched photos per search",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
	}, []string{"event"})

	BackendCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "photofind",
		Name:      "backend_call_duration_seconds",
		Help:      "Duration of object-store and face-backend calls",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	}, []string{"backend", "op"})

	BundlesAssembled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "photofind",
		Name:      "bundles_assembled_total",
		Help:      "Total number of archives assembled",
	})

	BundleMembersSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "photofind",
		Name:      "bundle_members_skipped_total",
		Help:      "Total number of archive members skipped after download failure",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "photofind",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "photofind",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
