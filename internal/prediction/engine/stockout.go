package engine

import (
	"fmt"
	"sort"

	"github.com/medflow/medpredict-backend/internal/prediction/domain"
)

// stockLine is an item's batches rolled up to a single stock figure.
type stockLine struct {
	itemID   int64
	name     string
	category string
	quantity int
}

// stockByItem sums batch quantities per item in ascending item order. Name
// and category come from the first batch seen for the item.
func (e *Engine) stockByItem() []stockLine {
	index := make(map[int64]int)
	var lines []stockLine
	for _, b := range e.batches {
		i, ok := index[b.ItemID]
		if !ok {
			index[b.ItemID] = len(lines)
			lines = append(lines, stockLine{itemID: b.ItemID, name: b.ItemName, category: b.Category})
			i = len(lines) - 1
		}
		lines[i].quantity += b.Quantity
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].itemID < lines[j].itemID })
	return lines
}

// StockoutRisks estimates how long each item's stock lasts at its trailing
// average rate, soonest first. Items without positive recent consumption are
// left out.
func (e *Engine) StockoutRisks() []domain.StockoutRisk {
	risks := []domain.StockoutRisk{}
	for _, line := range e.stockByItem() {
		s, ok := e.stats[line.itemID]
		if !ok || s.AvgDaily <= 0 {
			continue
		}

		days := float64(line.quantity) / s.AvgDaily
		level := StockoutRiskLevel(days)

		order := int(s.AvgWeekly*4) - line.quantity
		if order < 0 {
			order = 0
		}

		risks = append(risks, domain.StockoutRisk{
			ItemID:                     line.itemID,
			ItemName:                   line.name,
			Category:                   line.category,
			CurrentStock:               line.quantity,
			AvgDailyConsumption:        roundTo(s.AvgDaily, 1),
			PredictedWeeklyConsumption: int(s.AvgWeekly),
			DaysUntilStockout:          roundTo(days, 1),
			RiskLevel:                  level,
			RecommendedOrder:           order,
			Recommendation:             stockoutRecommendation(level, days),
		})
	}

	sort.SliceStable(risks, func(i, j int) bool {
		return risks[i].DaysUntilStockout < risks[j].DaysUntilStockout
	})
	return risks
}

// StockoutRiskLevel maps days of remaining cover to a level.
func StockoutRiskLevel(days float64) domain.RiskLevel {
	switch {
	case days <= 7:
		return domain.RiskCritical
	case days <= 14:
		return domain.RiskHigh
	case days <= 21:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

func stockoutRecommendation(level domain.RiskLevel, days float64) string {
	switch level {
	case domain.RiskCritical:
		return fmt.Sprintf("URGENT: Order immediately! Stock will last only %.0f days.", days)
	case domain.RiskHigh:
		return fmt.Sprintf("Order within 3 days. Current stock covers %.0f days.", days)
	case domain.RiskMedium:
		return fmt.Sprintf("Plan to order soon. Stock covers %.0f days.", days)
	default:
		return fmt.Sprintf("Stock adequate for %.0f days.", days)
	}
}
