// Package observability holds the Prometheus collectors and OpenTelemetry tracer.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InteractionsTotal counts coordinator operations by outcome.
	InteractionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xclone_interactions_total",
		Help: "Total like, retweet and reply operations by outcome",
	}, []string{"operation", "outcome"})

	// InteractionLatency records how long a coordinator transaction took.
	InteractionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "xclone_interaction_duration_seconds",
		Help:    "Interaction transaction latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// MediaFilesTotal counts uploaded files by kind and result.
	MediaFilesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xclone_media_files_total",
		Help: "Total uploaded media files by kind and result",
	}, []string{"kind", "result"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "xclone_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// RedisErrors counts Redis errors by command.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xclone_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"operation"})

	// WebSocketConnections is the gauge of open feed sockets.
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "xclone_websocket_connections",
		Help: "Number of active feed WebSocket connections",
	})

	// FeedEventsTotal counts published feed events by type.
	FeedEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xclone_feed_events_total",
		Help: "Total feed events published by type",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xclone_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"reason"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// ObserveInteraction records one coordinator operation.
func ObserveInteraction(operation, outcome string, start time.Time) {
	InteractionsTotal.WithLabelValues(operation, outcome).Inc()
	InteractionLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
