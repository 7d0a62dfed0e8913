package service

import (
	"context"

	"github.com/medflow/medpredict-backend/internal/prediction/domain"
	"github.com/medflow/medpredict-backend/internal/prediction/engine"
)

// RiskFilter narrows a risk list. A nil Level keeps every level; a Limit of
// zero or less means DefaultListLimit.
type RiskFilter struct {
	Level *domain.RiskLevel
	Limit int
}

func (f RiskFilter) limit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

// ExpiryRisks lists batch expiry risks, highest score first.
func (s *PredictionService) ExpiryRisks(filter RiskFilter) ([]domain.ExpiryRisk, error) {
	snap, err := s.active()
	if err != nil {
		return nil, err
	}

	risks := snap.engine.ExpiryRisks()
	out := make([]domain.ExpiryRisk, 0, len(risks))
	for _, r := range risks {
		if filter.Level != nil && r.RiskLevel != *filter.Level {
			continue
		}
		out = append(out, r)
		if len(out) == filter.limit() {
			break
		}
	}
	return out, nil
}

// StockoutRisks lists item stockout risks, soonest stockout first.
func (s *PredictionService) StockoutRisks(filter RiskFilter) ([]domain.StockoutRisk, error) {
	snap, err := s.active()
	if err != nil {
		return nil, err
	}

	risks := snap.engine.StockoutRisks()
	out := make([]domain.StockoutRisk, 0, len(risks))
	for _, r := range risks {
		if filter.Level != nil && r.RiskLevel != *filter.Level {
			continue
		}
		out = append(out, r)
		if len(out) == filter.limit() {
			break
		}
	}
	return out, nil
}

// Summary returns the dashboard summary, served from the cache when the
// same snapshot was already summarized today.
func (s *PredictionService) Summary(ctx context.Context) (domain.DashboardSummary, error) {
	snap, err := s.active()
	if err != nil {
		return domain.DashboardSummary{}, err
	}

	today := snap.engine.Today()
	cached, ok, err := s.cache.GetSummary(ctx, snap.version, today)
	if err != nil {
		s.logger.Warn().Err(err).Msg("summary cache lookup failed")
	}
	s.metrics.RecordCacheLookup(ok)
	if ok {
		return *cached, nil
	}

	summary := snap.engine.DashboardSummaryAt(today)
	if err := s.cache.SetSummary(ctx, snap.version, today, &summary); err != nil {
		s.logger.Warn().Err(err).Msg("failed to store summary in cache")
	}
	return summary, nil
}

// Alerts returns the CRITICAL and HIGH alerts of both risk lists.
func (s *PredictionService) Alerts() (domain.AlertFeed, error) {
	snap, err := s.active()
	if err != nil {
		return domain.AlertFeed{}, err
	}
	return snap.engine.Alerts(), nil
}

// Items returns the per-item stock overview.
func (s *PredictionService) Items() ([]domain.ItemOverview, error) {
	snap, err := s.active()
	if err != nil {
		return nil, err
	}
	return snap.engine.Items(), nil
}

// Forecast predicts one item's consumption. An item without enough history
// yields a NotFound error naming the forecast.
func (s *PredictionService) Forecast(id int64, days int, confidenceLevel float64) (domain.Forecast, error) {
	snap, err := s.active()
	if err != nil {
		return domain.Forecast{}, err
	}
	if _, err := s.item(snap, id); err != nil {
		return domain.Forecast{}, err
	}

	f, ok := snap.engine.Forecast(id, days, confidenceLevel)
	if !ok {
		return domain.Forecast{}, insufficientHistory("forecast")
	}
	return f, nil
}

// ForecastSummary forecasts every eligible item.
func (s *PredictionService) ForecastSummary(days int) (domain.ForecastSummary, error) {
	snap, err := s.active()
	if err != nil {
		return domain.ForecastSummary{}, err
	}
	return snap.engine.SummarizeForecasts(days), nil
}

// TrendAnalysis returns one item's detailed trend report.
func (s *PredictionService) TrendAnalysis(id int64) (domain.TrendAnalysis, error) {
	snap, err := s.active()
	if err != nil {
		return domain.TrendAnalysis{}, err
	}
	if _, err := s.item(snap, id); err != nil {
		return domain.TrendAnalysis{}, err
	}

	ta, ok := snap.engine.TrendAnalysis(id)
	if !ok {
		return domain.TrendAnalysis{}, insufficientHistory("trend analysis")
	}
	return ta, nil
}

// Anomalies detects anomalous days of one item.
func (s *PredictionService) Anomalies(id int64, days int, threshold float64) ([]domain.Anomaly, error) {
	snap, err := s.active()
	if err != nil {
		return nil, err
	}
	if _, err := s.item(snap, id); err != nil {
		return nil, err
	}

	found := snap.engine.DetectAnomalies(id, days, threshold)
	if found == nil {
		found = []domain.Anomaly{}
	}
	return found, nil
}

// AllAnomalies detects anomalies across every eligible item.
func (s *PredictionService) AllAnomalies(days int, minSeverity domain.Severity) ([]domain.Anomaly, error) {
	snap, err := s.active()
	if err != nil {
		return nil, err
	}
	return snap.engine.DetectAllAnomalies(days, minSeverity), nil
}

// Engine exposes the active engine for read-only callers such as the CLI.
func (s *PredictionService) Engine() (*engine.Engine, error) {
	snap, err := s.active()
	if err != nil {
		return nil, err
	}
	return snap.engine, nil
}
