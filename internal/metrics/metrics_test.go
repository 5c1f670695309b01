package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSkipReason(t *testing.T) {
	tests := []struct {
		reason string
		want   string
	}{
		{"run already in progress", SkipReasonRunning},
		{"running", SkipReasonRunning},
		{"interval not elapsed", SkipReasonNotDue},
		{"backoff after error", SkipReasonBackoff},
		{"context canceled", SkipReasonCanceled},
		{"something else", SkipReasonOther},
	}

	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeSkipReason(tt.reason))
		})
	}
}

func TestRecordSearch(t *testing.T) {
	before := testutil.ToFloat64(Evaluations.WithLabelValues("TEST"))

	RecordSearch(SearchSummary{
		Algorithm:       "TEST",
		BestScore:       42.5,
		Found:           true,
		Heuristic:       true,
		Evaluations:     100,
		Failures:        3,
		DurationSeconds: 1.2,
	})

	assert.Equal(t, before+100, testutil.ToFloat64(Evaluations.WithLabelValues("TEST")))
	assert.Equal(t, 42.5, testutil.ToFloat64(BestScore.WithLabelValues("TEST")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(EvaluationFailures.WithLabelValues("TEST")), 3.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(HeuristicSearches.WithLabelValues("TEST")), 1.0)

	// A search without a candidate leaves the gauge untouched
	RecordSearch(SearchSummary{Algorithm: "TEST", BestScore: -1, Found: false})
	assert.Equal(t, 42.5, testutil.ToFloat64(BestScore.WithLabelValues("TEST")))
}

func TestRecordSinkPublish(t *testing.T) {
	okBefore := testutil.ToFloat64(SinkPublishes.WithLabelValues("unit", ResultSuccess))
	failBefore := testutil.ToFloat64(SinkPublishes.WithLabelValues("unit", ResultFailure))

	RecordSinkPublish("unit", nil)
	RecordSinkPublish("unit", errors.New("down"))

	assert.Equal(t, okBefore+1, testutil.ToFloat64(SinkPublishes.WithLabelValues("unit", ResultSuccess)))
	assert.Equal(t, failBefore+1, testutil.ToFloat64(SinkPublishes.WithLabelValues("unit", ResultFailure)))
}

func TestRecordHelpersDoNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordRun(OutcomeApplied, 3.5)
		RecordMergeApplied("PSO")
		RecordSkippedTrigger("running")
		SetCoordinatorState(1)
		RecordError("bars")
		RecordRedisOperation("get")
		RecordCacheLookup(true)
		RecordCacheLookup(false)
		RecordDatabaseQuery("load_bars", 12)
		SetCircuitBreakerState("market", 0)
	})
}

// ============================================================================
// SERVER
// ============================================================================

func TestServer_HealthEndpoint(t *testing.T) {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	var readyErr error
	server := NewServer(0, func() error { return readyErr }, log)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))

	readyErr = errors.New("database unavailable")
	resp, err = http.Get(ts.URL + "/health")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, string(body), "database unavailable")
}

func TestServer_MetricsEndpoint(t *testing.T) {
	RecordRun(OutcomeApplied, 1)

	server := NewServer(0, nil, zerolog.Nop())
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hybridopt_runs_total")
}

func TestServer_ShutdownWithoutStart(t *testing.T) {
	server := NewServer(0, nil, zerolog.Nop())
	assert.NoError(t, server.Shutdown(t.Context()))
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(GinMiddleware())
	router.GET("/api/v1/things/:id", func(c *gin.Context) {
		c.Status(http.StatusTeapot)
	})

	before := testutil.ToFloat64(HTTPRequests.WithLabelValues(http.MethodGet, "/api/v1/things/:id", "418"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/things/42", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	after := testutil.ToFloat64(HTTPRequests.WithLabelValues(http.MethodGet, "/api/v1/things/:id", "418"))
	assert.Equal(t, before+1, after)
}
