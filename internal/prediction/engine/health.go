package engine

import "github.com/medflow/medpredict-backend/internal/prediction/domain"

var (
	expiryPenalty = map[domain.RiskLevel]float64{
		domain.RiskCritical: 5,
		domain.RiskHigh:     2,
		domain.RiskMedium:   0.5,
	}
	stockoutPenalty = map[domain.RiskLevel]float64{
		domain.RiskCritical: 8,
		domain.RiskHigh:     3,
		domain.RiskMedium:   1,
	}
)

// HealthScore deducts a fixed penalty per risk level from 100 and clamps the
// result to [0, 100]. The sum is not normalized by list length.
func HealthScore(expiry []domain.ExpiryRisk, stockout []domain.StockoutRisk) int {
	score := 100.0
	for _, r := range expiry {
		score -= expiryPenalty[r.RiskLevel]
	}
	for _, r := range stockout {
		score -= stockoutPenalty[r.RiskLevel]
	}
	return int(clamp(score, 0, 100))
}
