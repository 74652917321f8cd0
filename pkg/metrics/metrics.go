package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// HTTP metrics
// =============================================================================

// HttpRequestsTotal counts all HTTP requests.
// Labels: service, method, path, status
var HttpRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	},
	[]string{"service", "method", "path", "status"},
)

// HttpRequestDuration is the response latency histogram.
var HttpRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	},
	[]string{"service", "method", "path"},
)

// HttpRequestsInFlight is the number of requests currently being served.
var HttpRequestsInFlight = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "http_requests_in_flight",
		Help: "Current number of HTTP requests being processed",
	},
	[]string{"service"},
)

// =============================================================================
// Ingestion metrics
// =============================================================================

// IngestRunsTotal counts ingestion runs by final status (completed, cancelled).
var IngestRunsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ingest_runs_total",
		Help: "Total number of ingestion runs",
	},
	[]string{"status"},
)

// IngestRunDuration is the end-to-end duration of an ingestion run.
var IngestRunDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "ingest_run_duration_seconds",
		Help:    "Duration of a full ingestion run in seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	},
)

// IngestRecordsTotal counts normalized records processed per source.
// Labels: source, result (upserted, refreshed, failed)
var IngestRecordsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ingest_records_total",
		Help: "Total number of normalized records processed",
	},
	[]string{"source", "result"},
)

// IngestObservationsTotal counts price observations appended per source.
var IngestObservationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ingest_observations_total",
		Help: "Total number of price observations appended",
	},
	[]string{"source"},
)

// IngestSourceFailuresTotal counts source-level failures by reason
// (authentication_expired, network_error, cancelled).
var IngestSourceFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ingest_source_failures_total",
		Help: "Total number of failed sources per ingestion run",
	},
	[]string{"source", "reason"},
)

// IngestRecordFailuresTotal counts record-level skips by reason
// (validation_error, unknown_product).
var IngestRecordFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ingest_record_failures_total",
		Help: "Total number of skipped records by failure reason",
	},
	[]string{"source", "reason"},
)

// =============================================================================
// Matching metrics
// =============================================================================

// MatchingPassesTotal counts automatic matching passes.
var MatchingPassesTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "matching_passes_total",
		Help: "Total number of automatic matching passes",
	},
)

// MatchingGroupsCreated counts equivalence groups created automatically.
var MatchingGroupsCreated = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "matching_groups_created_total",
		Help: "Total number of equivalence groups created by automatic matching",
	},
)

// MatchingAssignments counts memberships assigned or revised by a pass.
// Labels: kind (assigned, revised)
var MatchingAssignments = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "matching_assignments_total",
		Help: "Total number of automatic group memberships assigned or revised",
	},
	[]string{"kind"},
)

// MatchingSkippedNames counts products skipped because their name could
// not be scored.
var MatchingSkippedNames = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "matching_skipped_names_total",
		Help: "Total number of products skipped by the scorer",
	},
)

// MatchingPassDuration is the duration of one matching pass.
var MatchingPassDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "matching_pass_duration_seconds",
		Help:    "Duration of an automatic matching pass in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
	},
)

// =============================================================================
// Cache metrics
// =============================================================================

// CacheHits counts cache hits per key prefix.
var CacheHits = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total number of cache hits",
	},
	[]string{"service", "key_prefix"},
)

// CacheMisses counts cache misses per key prefix.
var CacheMisses = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total number of cache misses",
	},
	[]string{"service", "key_prefix"},
)

// CacheErrors counts cache backend errors per operation.
var CacheErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cache_errors_total",
		Help: "Total number of cache errors",
	},
	[]string{"service", "operation"},
)

// =============================================================================
// Kafka metrics
// =============================================================================

// KafkaMessagesProduced counts produced messages per topic.
var KafkaMessagesProduced = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kafka_messages_produced_total",
		Help: "Total number of Kafka messages produced",
	},
	[]string{"service", "topic"},
)

// KafkaErrors counts producer errors per topic.
var KafkaErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kafka_errors_total",
		Help: "Total number of Kafka errors",
	},
	[]string{"service", "topic", "operation"},
)
