package handler

import (
	"net/http"

	"github.com/medflow/medpredict-backend/internal/prediction/domain"
	"github.com/medflow/medpredict-backend/pkg/httputil"
)

type forecastQuery struct {
	Days            int     `query:"days" validate:"min=1,max=365"`
	ConfidenceLevel float64 `query:"confidence_level" validate:"gt=0,lt=1"`
}

type anomalyQuery struct {
	Days      int     `query:"days" validate:"min=1,max=730"`
	Threshold float64 `query:"threshold" validate:"gt=0,lte=10"`
}

type allAnomaliesQuery struct {
	Days        int    `query:"days" validate:"min=1,max=365"`
	MinSeverity string `query:"min_severity" validate:"severity"`
}

type forecastSummaryQuery struct {
	Days int `query:"days" validate:"min=1,max=365"`
}

// Forecast predicts one item's consumption over the requested horizon
func (h *PredictionHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var q forecastQuery
	if q.Days, err = httputil.QueryInt(r, "days", h.defaults.ForecastDays); err != nil {
		httputil.Error(w, err)
		return
	}
	if q.ConfidenceLevel, err = httputil.QueryFloat(r, "confidence_level", h.defaults.ConfidenceLevel); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(q); err != nil {
		httputil.Error(w, err)
		return
	}

	forecast, err := h.svc.Forecast(id, q.Days, q.ConfidenceLevel)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, forecast)
}

// Trend returns one item's detailed trend report
func (h *PredictionHandler) Trend(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	analysis, err := h.svc.TrendAnalysis(id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, analysis)
}

// Anomalies lists anomalous consumption days of one item
func (h *PredictionHandler) Anomalies(w http.ResponseWriter, r *http.Request) {
	id, err := itemID(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var q anomalyQuery
	if q.Days, err = httputil.QueryInt(r, "days", h.defaults.AnomalyDays); err != nil {
		httputil.Error(w, err)
		return
	}
	if q.Threshold, err = httputil.QueryFloat(r, "threshold", h.defaults.AnomalyThreshold); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(q); err != nil {
		httputil.Error(w, err)
		return
	}

	anomalies, err := h.svc.Anomalies(id, q.Days, q.Threshold)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, anomalies)
}

// ForecastSummary forecasts every item with enough history
func (h *PredictionHandler) ForecastSummary(w http.ResponseWriter, r *http.Request) {
	var q forecastSummaryQuery
	var err error
	if q.Days, err = httputil.QueryInt(r, "days", h.defaults.ForecastDays); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(q); err != nil {
		httputil.Error(w, err)
		return
	}

	summary, err := h.svc.ForecastSummary(q.Days)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, summary)
}

// AllAnomalies lists anomalies across all items at or above min_severity
func (h *PredictionHandler) AllAnomalies(w http.ResponseWriter, r *http.Request) {
	q := allAnomaliesQuery{
		MinSeverity: r.URL.Query().Get("min_severity"),
	}
	if q.MinSeverity == "" {
		q.MinSeverity = domain.SeverityMedium.String()
	}

	var err error
	if q.Days, err = httputil.QueryInt(r, "days", h.defaults.DetectAllDays); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(q); err != nil {
		httputil.Error(w, err)
		return
	}

	minSeverity, _ := domain.ParseSeverity(q.MinSeverity)
	anomalies, err := h.svc.AllAnomalies(q.Days, minSeverity)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	if anomalies == nil {
		anomalies = []domain.Anomaly{}
	}

	httputil.JSON(w, http.StatusOK, anomalies)
}
