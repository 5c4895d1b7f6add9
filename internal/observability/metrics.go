// Package observability provides metrics and tracing.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// VotesCast counts ledger transitions by action (created, switched, removed, unchanged).
	VotesCast = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_votes_cast_total",
		Help: "Total number of vote casts by resulting action",
	}, []string{"action"})

	// VoteRetries counts ledger transactions retried after losing a first-vote race.
	VoteRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agora_vote_retries_total",
		Help: "Total number of vote transactions retried after a unique violation",
	})

	// PostReads counts aggregation reads by kind (single, feed, author, replies).
	PostReads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_post_reads_total",
		Help: "Total number of aggregated post reads by kind",
	}, []string{"kind"})

	// MediaUploads counts stored blobs by outcome.
	MediaUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_media_uploads_total",
		Help: "Total number of media uploads by outcome",
	}, []string{"outcome"})

	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agora_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// WebSocketConnectionsTotal is the gauge of open event stream connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agora_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts events dropped because a client's buffer was full.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
