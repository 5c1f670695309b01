package metrics

import (
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Bounded label values
const (
	OutcomeApplied = "applied"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"

	ResultSuccess = "success"
	ResultFailure = "failure"

	// Skip reasons (bounded set)
	SkipReasonRunning  = "running"
	SkipReasonNotDue   = "not_due"
	SkipReasonBackoff  = "backoff"
	SkipReasonOther    = "other"
	SkipReasonCanceled = "canceled"
)

// NormalizeSkipReason maps arbitrary reasons to the bounded set
func NormalizeSkipReason(reason string) string {
	lower := strings.ToLower(reason)
	switch {
	case strings.Contains(lower, "running") || strings.Contains(lower, "progress"):
		return SkipReasonRunning
	case strings.Contains(lower, "due") || strings.Contains(lower, "interval"):
		return SkipReasonNotDue
	case strings.Contains(lower, "backoff"):
		return SkipReasonBackoff
	case strings.Contains(lower, "cancel"):
		return SkipReasonCanceled
	default:
		return SkipReasonOther
	}
}

// Optimization Run Metrics
var (
	// Completed runs by outcome
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hybridopt_runs_total",
		Help: "Total number of hybrid optimization runs by outcome",
	}, []string{"outcome"})

	// Whole run duration
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hybridopt_run_duration_seconds",
		Help:    "Hybrid optimization run duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
	})

	// Per algorithm search duration
	SearchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hybridopt_search_duration_seconds",
		Help:    "Search duration in seconds by algorithm",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
	}, []string{"algorithm"})

	// Best score of the last search
	BestScore = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hybridopt_best_score",
		Help: "Best score found by the last search, higher is better",
	}, []string{"algorithm"})

	// Candidate evaluations
	Evaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hybridopt_evaluations_total",
		Help: "Total number of candidate evaluations by algorithm",
	}, []string{"algorithm"})

	// Failed candidate evaluations
	EvaluationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hybridopt_evaluation_failures_total",
		Help: "Total number of failed candidate evaluations by algorithm",
	}, []string{"algorithm"})

	// Searches scored by the heuristic table
	HeuristicSearches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hybridopt_heuristic_searches_total",
		Help: "Searches whose best candidate was scored without simulation",
	}, []string{"algorithm"})

	// Candidates written to the live strategy
	MergeApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hybridopt_merge_applied_total",
		Help: "Candidates applied to the live strategy by algorithm",
	}, []string{"algorithm"})

	// Skipped scheduler triggers
	SkippedTriggers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hybridopt_skipped_triggers_total",
		Help: "Scheduler ticks or manual triggers that did not start a run",
	}, []string{"reason"})

	// Coordinator state (0 = idle, 1 = running, 2 = merge applied, 3 = merge failed)
	CoordinatorState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hybridopt_coordinator_state",
		Help: "Coordinator state (0=idle, 1=running, 2=merge_applied, 3=merge_failed)",
	})

	// Size of the last bar snapshot
	BarsLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hybridopt_bars_loaded",
		Help: "Number of bars in the last evaluated snapshot",
	})

	// Errors by phase
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hybridopt_errors_total",
		Help: "Total number of run errors by phase",
	}, []string{"phase"})
)

// Collaborator Metrics
var (
	// Result sink publishes
	SinkPublishes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hybridopt_sink_publishes_total",
		Help: "Total number of result publishes by sink and result",
	}, []string{"sink", "result"})

	// Redis operations
	RedisOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hybridopt_redis_operations_total",
		Help: "Total number of Redis operations by type",
	}, []string{"operation"})

	// Redis bar cache lookups
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hybridopt_bar_cache_lookups_total",
		Help: "Bar cache lookups by result (hit or miss)",
	}, []string{"result"})

	// Database query duration
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hybridopt_database_query_duration_ms",
		Help:    "Database query duration in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"query_type"})

	// Circuit breaker state per collaborator
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hybridopt_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half_open)",
	}, []string{"service"})
)

// HTTP Metrics
var (
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hybridopt_api_request_duration_ms",
		Help:    "API request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"method", "path", "status_code"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hybridopt_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status_code"})
)

// SearchSummary is the subset of a search result recorded as metrics
type SearchSummary struct {
	Algorithm       string
	BestScore       float64
	Found           bool
	Heuristic       bool
	Evaluations     int
	Failures        int
	DurationSeconds float64
}

// RecordSearch records the outcome of one search
func RecordSearch(s SearchSummary) {
	SearchDuration.WithLabelValues(s.Algorithm).Observe(s.DurationSeconds)
	Evaluations.WithLabelValues(s.Algorithm).Add(float64(s.Evaluations))
	EvaluationFailures.WithLabelValues(s.Algorithm).Add(float64(s.Failures))
	if !s.Found {
		return
	}
	BestScore.WithLabelValues(s.Algorithm).Set(s.BestScore)
	if s.Heuristic {
		HeuristicSearches.WithLabelValues(s.Algorithm).Inc()
	}
}

// RecordRun records a completed hybrid run
func RecordRun(outcome string, durationSeconds float64) {
	RunsTotal.WithLabelValues(outcome).Inc()
	RunDuration.Observe(durationSeconds)
}

// RecordMergeApplied records a candidate written to the live strategy
func RecordMergeApplied(algorithm string) {
	MergeApplied.WithLabelValues(algorithm).Inc()
}

// RecordSkippedTrigger records a trigger that did not start a run
func RecordSkippedTrigger(reason string) {
	SkippedTriggers.WithLabelValues(NormalizeSkipReason(reason)).Inc()
}

// SetCoordinatorState publishes the coordinator state machine value
func SetCoordinatorState(state int) {
	CoordinatorState.Set(float64(state))
}

// RecordError records a run error for a phase
func RecordError(phase string) {
	Errors.WithLabelValues(phase).Inc()
}

// RecordSinkPublish records one publish attempt
func RecordSinkPublish(sink string, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	SinkPublishes.WithLabelValues(sink, result).Inc()
}

// RecordRedisOperation records one Redis command
func RecordRedisOperation(operation string) {
	RedisOperations.WithLabelValues(operation).Inc()
}

// RecordCacheLookup records a bar cache hit or miss
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookups.WithLabelValues(result).Inc()
}

// RecordDatabaseQuery records a database query duration
func RecordDatabaseQuery(queryType string, durationMs float64) {
	DatabaseQueryDuration.WithLabelValues(queryType).Observe(durationMs)
}

// SetCircuitBreakerState publishes a breaker state (0 closed, 1 open, 2 half open)
func SetCircuitBreakerState(service string, state int) {
	CircuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// RecordAPIRequest records an API request
func RecordAPIRequest(method, path, statusCode string, durationMs float64) {
	APIRequestDuration.WithLabelValues(method, path, statusCode).Observe(durationMs)
	HTTPRequests.WithLabelValues(method, path, statusCode).Inc()
}

// ErrNotReady is reported by the health endpoint until the readiness check passes
var ErrNotReady = errors.New("not ready")
