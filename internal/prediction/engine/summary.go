package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/medflow/medpredict-backend/internal/prediction/domain"
	"github.com/shopspring/decimal"
)

// DashboardSummary scores both risk lists as of today and reduces them to
// counts, values and the health score.
func (e *Engine) DashboardSummary() domain.DashboardSummary {
	return e.DashboardSummaryAt(e.Today())
}

// DashboardSummaryAt is DashboardSummary for an explicit reference date.
func (e *Engine) DashboardSummaryAt(ref time.Time) domain.DashboardSummary {
	expiry := e.ExpiryRisksAt(ref)
	stockout := e.StockoutRisks()

	summary := domain.DashboardSummary{
		TotalItems:          len(e.items),
		TotalBatches:        len(e.batches),
		TotalInventoryValue: e.inventoryValue(),
		ExpiryRisk: domain.ExpiryRiskSummary{
			TotalAtRiskValue: decimal.Zero,
			TopRisks:         head(expiry, dashboardTopN),
		},
		StockoutRisk: domain.StockoutRiskSummary{
			TopRisks: head(stockout, dashboardTopN),
		},
		HealthScore: HealthScore(expiry, stockout),
	}

	for _, r := range expiry {
		summary.ExpiryRisk.TotalAtRiskValue = summary.ExpiryRisk.TotalAtRiskValue.Add(r.PotentialLoss)
		switch r.RiskLevel {
		case domain.RiskCritical:
			summary.ExpiryRisk.CriticalCount++
		case domain.RiskHigh:
			summary.ExpiryRisk.HighCount++
		}
	}
	for _, r := range stockout {
		switch r.RiskLevel {
		case domain.RiskCritical:
			summary.StockoutRisk.CriticalCount++
		case domain.RiskHigh:
			summary.StockoutRisk.HighCount++
		}
	}

	return summary
}

func (e *Engine) inventoryValue() decimal.Decimal {
	total := decimal.Zero
	for _, b := range e.batches {
		total = total.Add(lossOf(b.Quantity, b.UnitCost))
	}
	return total
}

// Alerts collects the CRITICAL and HIGH entries of both risk lists as of
// today, CRITICAL first.
func (e *Engine) Alerts() domain.AlertFeed {
	return e.AlertsAt(e.Today())
}

// AlertsAt is Alerts for an explicit reference date.
func (e *Engine) AlertsAt(ref time.Time) domain.AlertFeed {
	alerts := []domain.Alert{}

	for _, r := range e.ExpiryRisksAt(ref) {
		if r.RiskLevel < domain.RiskHigh {
			continue
		}
		loss := r.PotentialLoss
		alerts = append(alerts, domain.Alert{
			Kind:           domain.AlertExpiry,
			Severity:       r.RiskLevel,
			ItemID:         r.ItemID,
			ItemName:       r.ItemName,
			BatchNo:        r.BatchNo,
			Message:        fmt.Sprintf("%d units will expire in %d days", r.QuantityAtRisk, r.DaysToExpiry),
			PotentialLoss:  &loss,
			Recommendation: r.Recommendation,
		})
	}

	for _, r := range e.StockoutRisks() {
		if r.RiskLevel < domain.RiskHigh {
			continue
		}
		alerts = append(alerts, domain.Alert{
			Kind:           domain.AlertStockout,
			Severity:       r.RiskLevel,
			ItemID:         r.ItemID,
			ItemName:       r.ItemName,
			Message:        fmt.Sprintf("Stock will last only %.0f days", r.DaysUntilStockout),
			Recommendation: r.Recommendation,
		})
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Severity > alerts[j].Severity
	})

	feed := domain.AlertFeed{TotalAlerts: len(alerts), Alerts: alerts}
	for _, a := range alerts {
		if a.Severity == domain.RiskCritical {
			feed.CriticalCount++
		} else {
			feed.HighCount++
		}
	}
	return feed
}

// Items lists every stocked item with its current stock and, when it has
// recent consumption, its average daily and weekly rates.
func (e *Engine) Items() []domain.ItemOverview {
	lines := e.stockByItem()
	items := make([]domain.ItemOverview, 0, len(lines))
	for _, line := range lines {
		ov := domain.ItemOverview{
			ItemID:       line.itemID,
			ItemName:     line.name,
			Category:     line.category,
			CurrentStock: line.quantity,
		}
		if s, ok := e.stats[line.itemID]; ok {
			daily, weekly := roundTo(s.AvgDaily, 2), roundTo(s.AvgWeekly, 0)
			ov.AvgDailyConsumption = &daily
			ov.AvgWeeklyConsumption = &weekly
		}
		items = append(items, ov)
	}
	return items
}
