package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/aopopov01/TailTracker-sub005/src/advisor"
	"github.com/aopopov01/TailTracker-sub005/src/models"
	"github.com/aopopov01/TailTracker-sub005/src/orchestrator"
	"github.com/aopopov01/TailTracker-sub005/src/telemetry"
)

// Handler exposes the diagnostic surface of the cache engine
type Handler struct {
	engine  *orchestrator.Orchestrator
	monitor *telemetry.Monitor
	adviser *advisor.Advisor
	log     *logrus.Logger
}

// NewHandler creates a new API handler
func NewHandler(
	engine *orchestrator.Orchestrator,
	monitor *telemetry.Monitor,
	adviser *advisor.Advisor,
	log *logrus.Logger,
) *Handler {
	return &Handler{
		engine:  engine,
		monitor: monitor,
		adviser: adviser,
		log:     log,
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	// Health check
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")

	// Telemetry endpoints
	r.HandleFunc("/api/v1/metrics", h.GetMetrics).Methods("GET")
	r.HandleFunc("/api/v1/alerts", h.GetAlerts).Methods("GET")
	r.HandleFunc("/api/v1/alerts/{id}/ack", h.AcknowledgeAlert).Methods("POST")
	r.HandleFunc("/api/v1/trends/{period}", h.GetTrend).Methods("GET")
	r.HandleFunc("/api/v1/recommendations", h.GetRecommendations).Methods("GET")

	// Query analysis endpoints
	r.HandleFunc("/api/v1/analyze", h.AnalyzeQuery).Methods("POST")
	r.HandleFunc("/api/v1/indexes", h.GetIndexSuggestions).Methods("GET")

	// Orchestrator endpoints
	r.HandleFunc("/api/v1/report", h.GetReport).Methods("GET")
	r.HandleFunc("/api/v1/optimize", h.Optimize).Methods("POST")
}

// HealthCheck returns the health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{
		"status": "ok",
	}
	h.respondJSON(w, http.StatusOK, response)
}

// GetMetrics returns the consolidated cache metrics snapshot
func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.monitor.CurrentMetrics())
}

// GetAlerts returns unacknowledged performance alerts
func (h *Handler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.monitor.ActiveAlerts())
}

// AcknowledgeAlert marks an alert as handled
func (h *Handler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	alertID := vars["id"]

	if !h.monitor.AcknowledgeAlert(alertID) {
		h.respondError(w, http.StatusNotFound, "Alert not found")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"status": "acknowledged"})
}

// GetTrend returns the trend series for an hourly, daily or weekly period
func (h *Handler) GetTrend(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	period := models.TrendPeriod(vars["period"])

	switch period {
	case models.TrendHourly, models.TrendDaily, models.TrendWeekly:
	default:
		h.respondError(w, http.StatusBadRequest, "Unknown trend period")
		return
	}

	h.respondJSON(w, http.StatusOK, h.monitor.Trend(period))
}

// GetRecommendations returns optimization recommendations from current metrics
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.monitor.Recommendations())
}

// AnalyzeQueryRequest represents a query analysis request
type AnalyzeQueryRequest struct {
	Query string `json:"query"`
}

// AnalyzeQuery analyzes a SQL query
func (h *Handler) AnalyzeQuery(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Query == "" {
		h.respondError(w, http.StatusBadRequest, "Query is required")
		return
	}

	h.respondJSON(w, http.StatusOK, advisor.AnalyzeQuery(req.Query))
}

// GetIndexSuggestions returns the aggregated advisory index list
func (h *Handler) GetIndexSuggestions(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.adviser.IndexSuggestions())
}

// GetReport returns the weighted performance report
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.engine.Report())
}

// Optimize runs one optimization cycle and returns its outcome
func (h *Handler) Optimize(w http.ResponseWriter, r *http.Request) {
	outcome := h.engine.OptimizePerformance(r.Context())
	h.respondJSON(w, http.StatusOK, outcome)
}

// respondJSON sends a JSON response
func (h *Handler) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError sends an error response
func (h *Handler) respondError(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]string{
		"error": message,
	}
	h.respondJSON(w, statusCode, response)
}
