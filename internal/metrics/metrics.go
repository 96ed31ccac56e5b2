// Package metrics содержит prometheus-метрики сервиса. Коллекторы регистрируются
// в глобальном реестре при импорте и отдаются хендлером /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Embedding Metrics
	EmbeddingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taste_embedding_compute_duration_seconds",
			Help:    "Duration of user embedding aggregation in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	EmbeddingOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taste_embedding_outcomes_total",
			Help: "Results of user embedding aggregation",
		},
		[]string{"outcome"}, // "updated", "unchanged", "empty", "invalid", "unavailable"
	)

	FeatureReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taste_feature_reads_total",
			Help: "Feature store reads by result",
		},
		[]string{"result"}, // "ok", "missing", "invalid", "error"
	)

	// Scoring Metrics
	CompatibilityScores = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taste_compatibility_scores_total",
			Help: "Compatibility scores computed by method",
		},
		[]string{"method"}, // "embedding", "overlap"
	)

	RecommendationTiers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taste_recommendation_tier_total",
			Help: "Recommendation requests served by tier",
		},
		[]string{"tier"},
	)

	// Cache Metrics
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taste_cache_lookups_total",
			Help: "Result cache lookups",
		},
		[]string{"cache", "result"}, // result: "hit", "miss", "error"
	)

	// External Similar-Artist Service Metrics
	ExternalRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taste_external_search_requests_total",
			Help: "Requests to the external similar-artist service",
		},
		[]string{"result"}, // "ok", "empty", "error", "rejected"
	)

	ExternalDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taste_external_search_duration_seconds",
			Help:    "Latency of the external similar-artist service",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Event Metrics
	OwnershipEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taste_ownership_events_total",
			Help: "Ownership change events consumed from Kafka",
		},
		[]string{"result"}, // "scheduled", "malformed", "dropped"
	)

	OutboxPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taste_outbox_published_total",
			Help: "Outbox events published to Kafka",
		},
		[]string{"result"}, // "ok", "error"
	)

	RefreshUsers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taste_refresh_users_total",
			Help: "Users processed by bulk embedding refresh",
		},
		[]string{"result"}, // "processed", "empty", "failed"
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taste_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taste_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// RecordCacheLookup записывает попадание/промах/ошибку кэша
func RecordCacheLookup(cache string, hit bool, err error) {
	switch {
	case err != nil:
		CacheLookups.WithLabelValues(cache, "error").Inc()
	case hit:
		CacheLookups.WithLabelValues(cache, "hit").Inc()
	default:
		CacheLookups.WithLabelValues(cache, "miss").Inc()
	}
}

// RecordAPIRequest записывает метрики одного HTTP-запроса
func RecordAPIRequest(method, endpoint, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordExternalRequest записывает результат и задержку обращения к внешнему сервису
func RecordExternalRequest(result string, duration time.Duration) {
	ExternalRequests.WithLabelValues(result).Inc()
	ExternalDuration.Observe(duration.Seconds())
}
