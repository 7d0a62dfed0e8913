package handler

import (
	"net/http"

	"github.com/medflow/medpredict-backend/internal/prediction/domain"
	"github.com/medflow/medpredict-backend/internal/prediction/service"
	"github.com/medflow/medpredict-backend/pkg/httputil"
)

type riskQuery struct {
	RiskLevel string `query:"risk_level" validate:"omitempty,risk_level"`
	Limit     int    `query:"limit" validate:"min=1,max=1000"`
}

func parseRiskQuery(r *http.Request, defaultLimit int) (service.RiskFilter, error) {
	limit, err := httputil.QueryInt(r, "limit", defaultLimit)
	if err != nil {
		return service.RiskFilter{}, err
	}

	q := riskQuery{
		RiskLevel: r.URL.Query().Get("risk_level"),
		Limit:     limit,
	}
	if err := httputil.Validate(q); err != nil {
		return service.RiskFilter{}, err
	}

	filter := service.RiskFilter{Limit: q.Limit}
	if q.RiskLevel != "" {
		level, _ := domain.ParseRiskLevel(q.RiskLevel)
		filter.Level = &level
	}
	return filter, nil
}

// DashboardSummary returns the inventory health summary
func (h *PredictionHandler) DashboardSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Summary(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, summary)
}

// ExpiryRisks lists batch expiry risks, highest score first
func (h *PredictionHandler) ExpiryRisks(w http.ResponseWriter, r *http.Request) {
	filter, err := parseRiskQuery(r, h.defaults.ListLimit)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	risks, err := h.svc.ExpiryRisks(filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, risks)
}

// StockoutRisks lists item stockout risks, soonest first
func (h *PredictionHandler) StockoutRisks(w http.ResponseWriter, r *http.Request) {
	filter, err := parseRiskQuery(r, h.defaults.ListLimit)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	risks, err := h.svc.StockoutRisks(filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, risks)
}

// Alerts returns CRITICAL and HIGH risks of both kinds
func (h *PredictionHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	feed, err := h.svc.Alerts()
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, feed)
}

// Items lists every item with its stock and consumption rate
func (h *PredictionHandler) Items(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Items()
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, items)
}
