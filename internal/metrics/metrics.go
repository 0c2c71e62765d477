package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foliosend_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "foliosend_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Upload Metrics
	DocumentUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foliosend_document_uploads_total",
			Help: "Total number of document uploads",
		},
		[]string{"content_type"},
	)

	DocumentUploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "foliosend_document_upload_size_bytes",
			Help:    "Size of uploaded documents in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10), // 1KB to 256MB
		},
	)

	// Tracking Metrics
	SessionsStartedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foliosend_sessions_started_total",
			Help: "Total number of viewing sessions started",
		},
		[]string{"content_type", "source"},
	)

	SessionsClosedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foliosend_sessions_closed_total",
			Help: "Total number of viewing sessions closed",
		},
		[]string{"content_type", "intent"},
	)

	TrackingEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foliosend_tracking_events_total",
			Help: "Total number of tracking events ingested",
		},
		[]string{"event_type"},
	)

	SessionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "foliosend_session_duration_seconds",
			Help:    "Viewing session duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1 hour
		},
	)

	EngagementScore = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "foliosend_engagement_score",
			Help:    "Engagement score of closed sessions",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
		[]string{"content_type"},
	)

	HotLeadsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "foliosend_hot_leads_total",
			Help: "Total number of hot leads flagged",
		},
	)

	// Worker Metrics
	SessionEventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foliosend_worker_events_processed_total",
			Help: "Total number of session events processed by workers",
		},
		[]string{"status"},
	)

	EventQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "foliosend_event_queue_depth",
			Help: "Number of session events waiting in queue",
		},
	)

	AggregateRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foliosend_aggregate_refreshes_total",
			Help: "Total number of link aggregate refreshes",
		},
		[]string{"trigger"},
	)

	AggregateRefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "foliosend_aggregate_refresh_duration_seconds",
			Help:    "Time spent recomputing one link's aggregates",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
	)

	// Webhook Metrics
	WebhookDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foliosend_webhook_deliveries_total",
			Help: "Total number of webhook delivery attempts",
		},
		[]string{"event", "status"},
	)

	// Storage Metrics
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foliosend_storage_operations_total",
			Help: "Total number of storage operations",
		},
		[]string{"operation", "status"},
	)

	StorageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "foliosend_storage_operation_duration_seconds",
			Help:    "Storage operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"operation"},
	)

	// Database Metrics
	DatabaseOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foliosend_database_operations_total",
			Help: "Total number of database operations",
		},
		[]string{"operation", "status"},
	)

	DatabaseOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "foliosend_database_operation_duration_seconds",
			Help:    "Database operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Cache Metrics
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foliosend_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foliosend_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// Error Metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foliosend_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, endpoint, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordUpload records a document upload
func RecordUpload(contentType string, sizeBytes int64) {
	DocumentUploadsTotal.WithLabelValues(contentType).Inc()
	DocumentUploadSizeBytes.Observe(float64(sizeBytes))
}

// RecordSessionStarted records the start of a viewing session
func RecordSessionStarted(contentType, source string) {
	SessionsStartedTotal.WithLabelValues(contentType, source).Inc()
}

// RecordSessionClosed records a closed session with its outcome
func RecordSessionClosed(contentType, intent string, duration float64, score int, hotLead bool) {
	SessionsClosedTotal.WithLabelValues(contentType, intent).Inc()
	SessionDuration.Observe(duration)
	EngagementScore.WithLabelValues(contentType).Observe(float64(score))
	if hotLead {
		HotLeadsTotal.Inc()
	}
}

// RecordTrackingEvent records an ingested tracking event
func RecordTrackingEvent(eventType string) {
	TrackingEventsTotal.WithLabelValues(eventType).Inc()
}

// RecordEventProcessed records a worker's handling of a session event
func RecordEventProcessed(status string) {
	SessionEventsProcessed.WithLabelValues(status).Inc()
}

// SetEventQueueDepth updates the queued session event gauge
func SetEventQueueDepth(depth int) {
	EventQueueDepth.Set(float64(depth))
}

// RecordAggregateRefresh records an aggregate recompute
func RecordAggregateRefresh(trigger string, duration float64) {
	AggregateRefreshesTotal.WithLabelValues(trigger).Inc()
	AggregateRefreshDuration.Observe(duration)
}

// RecordWebhookDelivery records a webhook delivery attempt
func RecordWebhookDelivery(event, status string) {
	WebhookDeliveriesTotal.WithLabelValues(event, status).Inc()
}

// RecordStorageOperation records a storage operation
func RecordStorageOperation(operation, status string, duration float64) {
	StorageOperationsTotal.WithLabelValues(operation, status).Inc()
	StorageOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordDatabaseOperation records a database operation
func RecordDatabaseOperation(operation, status string, duration float64) {
	DatabaseOperationsTotal.WithLabelValues(operation, status).Inc()
	DatabaseOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordCacheAccess records cache hit or miss
func RecordCacheAccess(cacheType string, hit bool) {
	if hit {
		CacheHitsTotal.WithLabelValues(cacheType).Inc()
	} else {
		CacheMissesTotal.WithLabelValues(cacheType).Inc()
	}
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
