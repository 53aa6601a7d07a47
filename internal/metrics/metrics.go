package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "realtime_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Bus metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_published_total",
			Help: "Events published on the bus",
		},
		[]string{"type"},
	)

	SubscriberDrops = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_subscriber_drops_total",
			Help: "Events dropped because a subscriber buffer was full",
		},
	)

	// Fan-out metrics
	StreamConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_stream_connections",
			Help: "Currently open push streams",
		},
	)

	FramesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_frames_written_total",
			Help: "Frames written to push streams",
		},
		[]string{"type"},
	)

	// Durable mirror metrics
	MirrorPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_mirror_persisted_total",
			Help: "Events persisted to the durable store",
		},
		[]string{"type"},
	)

	MirrorErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_mirror_errors_total",
			Help: "Durable writes that failed and were dropped",
		},
	)

	MirrorDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_mirror_dropped_total",
			Help: "Events dropped at enqueue because the mirror queue was full",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_rate_limit_hits_total",
			Help: "Requests rejected by rate limiting",
		},
		[]string{"endpoint"},
	)
)
