package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aopopov01/TailTracker-sub005/src/advisor"
	"github.com/aopopov01/TailTracker-sub005/src/db"
	"github.com/aopopov01/TailTracker-sub005/src/models"
	"github.com/aopopov01/TailTracker-sub005/src/orchestrator"
	"github.com/aopopov01/TailTracker-sub005/src/predictor"
	"github.com/aopopov01/TailTracker-sub005/src/storage"
	"github.com/aopopov01/TailTracker-sub005/src/telemetry"
)

func newTestHandler(t *testing.T) (*Handler, *telemetry.Monitor, *mux.Router) {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	store := storage.NewMemoryStore()
	monitor := telemetry.NewMonitor(telemetry.Options{}, store, nil, log)
	adviser := advisor.NewAdvisor(advisor.Options{}, db.NewStubExecutor(), log)
	pred := predictor.NewPredictor(predictor.Options{}, store, log)

	engine := orchestrator.New(orchestrator.Options{}, orchestrator.Components{
		Advisor:   adviser,
		Predictor: pred,
		Monitor:   monitor,
	}, log)

	handler := NewHandler(engine, monitor, adviser, log)
	router := mux.NewRouter()
	handler.RegisterRoutes(router)
	return handler, monitor, router
}

func doRequest(router *mux.Router, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	_, _, router := newTestHandler(t)

	rec := doRequest(router, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestGetMetricsReflectsRecordedEvents(t *testing.T) {
	_, monitor, router := newTestHandler(t)

	monitor.RecordEvent(models.NewCacheEvent(models.EventHit, "pet_profile:1", 10*time.Millisecond, models.SourceMemory))
	monitor.RecordEvent(models.NewCacheEvent(models.EventMiss, "pet_profile:2", 80*time.Millisecond, models.SourceNetwork))

	rec := doRequest(router, "GET", "/api/v1/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot models.CacheMetrics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, int64(2), snapshot.TotalRequests)
	assert.InDelta(t, 0.5, snapshot.HitRatio, 1e-9)
}

func TestAcknowledgeAlertNotFound(t *testing.T) {
	_, _, router := newTestHandler(t)

	rec := doRequest(router, "POST", "/api/v1/alerts/no-such-alert/ack", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Alert not found", body["error"])
}

func TestGetTrendValidatesPeriod(t *testing.T) {
	_, _, router := newTestHandler(t)

	for _, period := range []string{"hour", "day", "week"} {
		rec := doRequest(router, "GET", "/api/v1/trends/"+period, nil)
		assert.Equal(t, http.StatusOK, rec.Code, period)
	}

	rec := doRequest(router, "GET", "/api/v1/trends/month", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeQuery(t *testing.T) {
	_, _, router := newTestHandler(t)

	payload, _ := json.Marshal(AnalyzeQueryRequest{Query: "SELECT * FROM pets"})
	rec := doRequest(router, "POST", "/api/v1/analyze", payload)
	require.Equal(t, http.StatusOK, rec.Code)

	var analysis models.QueryAnalysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &analysis))
	require.Len(t, analysis.Issues, 1)
	assert.Equal(t, "select_star", analysis.Issues[0].RuleID)
}

func TestAnalyzeQueryRejectsBadRequests(t *testing.T) {
	_, _, router := newTestHandler(t)

	rec := doRequest(router, "POST", "/api/v1/analyze", []byte("{not json"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	payload, _ := json.Marshal(AnalyzeQueryRequest{})
	rec = doRequest(router, "POST", "/api/v1/analyze", payload)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetReport(t *testing.T) {
	_, _, router := newTestHandler(t)

	rec := doRequest(router, "GET", "/api/v1/report", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var report orchestrator.PerformanceReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.NotEmpty(t, report.Grade)
	assert.GreaterOrEqual(t, report.CompositeScore, 0.0)
	assert.LessOrEqual(t, report.CompositeScore, 100.0)
}

func TestOptimizeEndpoint(t *testing.T) {
	_, _, router := newTestHandler(t)

	rec := doRequest(router, "POST", "/api/v1/optimize", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var outcome orchestrator.OptimizationOutcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	assert.NotNil(t, outcome.Before)
	assert.NotNil(t, outcome.After)
}
