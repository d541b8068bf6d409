package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// File pipeline metrics
	FileUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "file_uploads_total",
			Help: "Total number of file uploads",
		},
		[]string{"kind", "status"},
	)

	KMLConversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kml_conversions_total",
			Help: "Total number of KML to GeoJSON conversions",
		},
		[]string{"status"},
	)

	// Orphan sweep metrics
	SweepRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orphan_sweep_runs_total",
			Help: "Total number of orphan sweep runs",
		},
	)

	SweepOrphansRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orphan_sweep_files_removed_total",
			Help: "Total number of orphaned files removed by the sweeper",
		},
	)

	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)

	// Event bus metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total number of events published",
		},
		[]string{"event_type"},
	)
)
