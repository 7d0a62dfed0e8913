// Package handler exposes the prediction service over HTTP.
package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/medflow/medpredict-backend/internal/prediction/domain"
	"github.com/medflow/medpredict-backend/internal/prediction/engine"
	"github.com/medflow/medpredict-backend/internal/prediction/service"
	"github.com/medflow/medpredict-backend/pkg/errors"
	"github.com/medflow/medpredict-backend/pkg/httputil"
	"github.com/medflow/medpredict-backend/pkg/logger"
	"github.com/medflow/medpredict-backend/pkg/monitoring"
)

func init() {
	must(httputil.RegisterCustomValidation("risk_level", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseRiskLevel(fl.Field().String())
		return err == nil
	}))
	must(httputil.RegisterCustomValidation("severity", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseSeverity(fl.Field().String())
		return err == nil
	}))
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// HealthCheck reports the state of one dependency.
type HealthCheck func(ctx context.Context) map[string]string

// QueryDefaults are the values used for query parameters the caller omits.
type QueryDefaults struct {
	ForecastDays     int
	ConfidenceLevel  float64
	AnomalyDays      int
	AnomalyThreshold float64
	DetectAllDays    int
	ListLimit        int
}

// DefaultQueryDefaults returns the engine and service defaults.
func DefaultQueryDefaults() QueryDefaults {
	return QueryDefaults{
		ForecastDays:     engine.DefaultForecastDays,
		ConfidenceLevel:  engine.DefaultConfidenceLevel,
		AnomalyDays:      engine.DefaultAnomalyDays,
		AnomalyThreshold: engine.DefaultAnomalyThreshold,
		DetectAllDays:    engine.DefaultDetectAllDays,
		ListLimit:        service.DefaultListLimit,
	}
}

// PredictionHandler handles prediction endpoints
type PredictionHandler struct {
	svc      *service.PredictionService
	metrics  *monitoring.MetricsCollector
	checks   map[string]HealthCheck
	defaults QueryDefaults
	logger   *logger.Logger
}

// NewPredictionHandler creates a new prediction handler
func NewPredictionHandler(svc *service.PredictionService, metrics *monitoring.MetricsCollector, log *logger.Logger) *PredictionHandler {
	return &PredictionHandler{
		svc:      svc,
		metrics:  metrics,
		checks:   make(map[string]HealthCheck),
		defaults: DefaultQueryDefaults(),
		logger:   log,
	}
}

// SetQueryDefaults replaces the query defaults. Zero fields keep the
// current value.
func (h *PredictionHandler) SetQueryDefaults(d QueryDefaults) {
	if d.ForecastDays > 0 {
		h.defaults.ForecastDays = d.ForecastDays
	}
	if d.ConfidenceLevel > 0 {
		h.defaults.ConfidenceLevel = d.ConfidenceLevel
	}
	if d.AnomalyDays > 0 {
		h.defaults.AnomalyDays = d.AnomalyDays
	}
	if d.AnomalyThreshold > 0 {
		h.defaults.AnomalyThreshold = d.AnomalyThreshold
	}
	if d.DetectAllDays > 0 {
		h.defaults.DetectAllDays = d.DetectAllDays
	}
	if d.ListLimit > 0 {
		h.defaults.ListLimit = d.ListLimit
	}
}

// AddHealthCheck adds a dependency to the health report.
func (h *PredictionHandler) AddHealthCheck(name string, check HealthCheck) {
	h.checks[name] = check
}

// Routes mounts the prediction API on r.
func (h *PredictionHandler) Routes(r chi.Router) {
	r.Get("/health", h.Health)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics.Handler())
	}
	r.Get("/status", h.Status)
	r.Post("/reload", h.Reload)

	r.Get("/dashboard/summary", h.DashboardSummary)
	r.Get("/alerts", h.Alerts)
	r.Get("/items", h.Items)

	r.Get("/expiry-risks", h.ExpiryRisks)
	r.Get("/stockout-risks", h.StockoutRisks)

	r.Route("/items/{id}", func(r chi.Router) {
		r.Get("/forecast", h.Forecast)
		r.Get("/trend", h.Trend)
		r.Get("/anomalies", h.Anomalies)
	})
	r.Get("/forecasts/summary", h.ForecastSummary)
	r.Get("/anomalies", h.AllAnomalies)
}

func itemID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.BadRequest("invalid medicine id")
	}
	return id, nil
}
