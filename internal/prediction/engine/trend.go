package engine

import (
	"math"
	"sort"
	"time"

	"github.com/medflow/medpredict-backend/internal/prediction/domain"
)

const trendSlopeThreshold = 0.1

// buildTrendStatistics fits a linear trend to every item with enough history.
// The slope is per sample, which equals per day when the log has one record
// per item per day.
func buildTrendStatistics(history map[int64][]domain.ConsumptionRecord, order []int64) (map[int64]domain.TrendStatistics, []int64) {
	trends := make(map[int64]domain.TrendStatistics)
	var eligible []int64

	for _, id := range order {
		recs := history[id]
		if len(recs) < minTrendPoints {
			continue
		}

		ys := make([]float64, len(recs))
		for i, rec := range recs {
			ys[i] = float64(rec.QuantityDispensed)
		}

		m := mean(ys)
		fit := fitIndex(ys)

		growth := 0.0
		if m != 0 {
			growth = fit.slope / m * 365 * 100
		}

		trends[id] = domain.TrendStatistics{
			ItemID:          id,
			Mean:            m,
			Std:             populationStd(ys),
			Slope:           fit.slope,
			Intercept:       fit.intercept,
			RSquared:        fit.rSquared,
			GrowthRate:      growth,
			Trend:           classifyTrend(fit.slope),
			SeasonalFactors: monthlyFactors(recs, m),
			DataPoints:      len(recs),
		}
		eligible = append(eligible, id)
	}

	return trends, eligible
}

func classifyTrend(slope float64) domain.TrendLabel {
	switch {
	case slope > trendSlopeThreshold:
		return domain.TrendIncreasing
	case slope < -trendSlopeThreshold:
		return domain.TrendDecreasing
	default:
		return domain.TrendStable
	}
}

// monthlyFactors maps every calendar month to its average divided by the
// overall average. Months without data map to 1.
func monthlyFactors(recs []domain.ConsumptionRecord, overall float64) map[time.Month]float64 {
	var sums [13]float64
	var counts [13]int
	for _, rec := range recs {
		m := rec.Date.Month()
		sums[m] += float64(rec.QuantityDispensed)
		counts[m]++
	}

	factors := make(map[time.Month]float64, 12)
	for m := time.January; m <= time.December; m++ {
		if counts[m] == 0 || overall == 0 {
			factors[m] = 1.0
			continue
		}
		factors[m] = sums[m] / float64(counts[m]) / overall
	}
	return factors
}

// TrendStatistics returns the full-history statistics for an item.
func (e *Engine) TrendStatistics(id int64) (domain.TrendStatistics, bool) {
	ts, ok := e.trends[id]
	return ts, ok
}

// Forecast projects demand over the next days with a two-sided confidence
// interval at the given level. Levels outside (0, 1) fall back to
// DefaultConfidenceLevel. It returns false for items without enough history
// or without an item master entry.
func (e *Engine) Forecast(id int64, days int, level float64) (domain.Forecast, bool) {
	ts, ok := e.trends[id]
	if !ok {
		return domain.Forecast{}, false
	}
	item, ok := e.Item(id)
	if !ok {
		return domain.Forecast{}, false
	}
	if level <= 0 || level >= 1 {
		level = DefaultConfidenceLevel
	}

	d := float64(days)
	sf := ts.SeasonalFactors[e.now().Month()]

	base := ts.Mean*d + ts.Slope*d*d/2
	predicted := int(math.Floor(base * sf))
	if predicted < 0 {
		predicted = 0
	}

	margin := normalQuantile(level) * ts.Std * math.Sqrt(d)
	lower := int(float64(predicted) - margin)
	if lower < 0 {
		lower = 0
	}
	upper := int(float64(predicted) + margin)

	confidence := math.Min(0.95, ts.RSquared*0.5+0.5*math.Min(1, float64(ts.DataPoints)/365))

	anomalies := e.DetectAnomalies(id, forecastAnomalyLookback, e.anomalyThreshold)

	return domain.Forecast{
		ItemID:            id,
		ItemName:          item.Name,
		ForecastDays:      days,
		PredictedQuantity: predicted,
		LowerBound:        lower,
		UpperBound:        upper,
		Confidence:        roundTo(confidence, 2),
		Trend:             ts.Trend,
		GrowthRate:        roundTo(ts.GrowthRate, 1),
		SeasonalFactor:    roundTo(sf, 2),
		AnomaliesDetected: len(anomalies),
	}, true
}

// SummarizeForecasts forecasts every eligible item at the default confidence
// level and ranks them by predicted quantity and by positive growth.
func (e *Engine) SummarizeForecasts(days int) domain.ForecastSummary {
	forecasts := make([]domain.Forecast, 0, len(e.trendOrder))
	for _, id := range e.trendOrder {
		if f, ok := e.Forecast(id, days, DefaultConfidenceLevel); ok {
			forecasts = append(forecasts, f)
		}
	}

	summary := domain.ForecastSummary{
		ForecastDays:  days,
		ItemsAnalyzed: len(forecasts),
	}

	growing := []domain.Forecast{}
	for _, f := range forecasts {
		summary.TotalPredicted += f.PredictedQuantity
		switch f.Trend {
		case domain.TrendIncreasing:
			summary.TrendSummary.Increasing++
		case domain.TrendDecreasing:
			summary.TrendSummary.Decreasing++
		default:
			summary.TrendSummary.Stable++
		}
		if f.GrowthRate > 0 {
			growing = append(growing, f)
		}
	}

	byQuantity := make([]domain.Forecast, len(forecasts))
	copy(byQuantity, forecasts)
	sort.SliceStable(byQuantity, func(i, j int) bool {
		return byQuantity[i].PredictedQuantity > byQuantity[j].PredictedQuantity
	})
	sort.SliceStable(growing, func(i, j int) bool {
		return growing[i].GrowthRate > growing[j].GrowthRate
	})

	summary.TopByConsumption = head(byQuantity, summaryTopN)
	summary.TopByGrowth = head(growing, summaryTopN)
	return summary
}

func head[T any](xs []T, n int) []T {
	if len(xs) > n {
		return xs[:n]
	}
	return xs
}

// TrendAnalysis is the detailed trend report for one item. It returns false
// when the item has no trend statistics or no item master entry.
func (e *Engine) TrendAnalysis(id int64) (domain.TrendAnalysis, bool) {
	ts, ok := e.trends[id]
	if !ok {
		return domain.TrendAnalysis{}, false
	}
	item, ok := e.Item(id)
	if !ok {
		return domain.TrendAnalysis{}, false
	}

	factors := make(map[string]float64, len(ts.SeasonalFactors))
	for m, f := range ts.SeasonalFactors {
		factors[m.String()] = roundTo(f, 2)
	}

	recs := e.history[id]
	return domain.TrendAnalysis{
		ItemID:             id,
		ItemName:           item.Name,
		Trend:              ts.Trend,
		GrowthRateAnnual:   roundTo(ts.GrowthRate, 1),
		AverageDaily:       roundTo(ts.Mean, 1),
		StandardDeviation:  roundTo(ts.Std, 1),
		DataQuality:        dataQuality(ts.DataPoints),
		SeasonalFactors:    factors,
		WeeklyConsumption:  lastPeriods(recs, weekStart, 12),
		MonthlyConsumption: lastPeriods(recs, monthStart, 12),
	}, true
}

func dataQuality(points int) string {
	switch {
	case points > 180:
		return "good"
	case points > 90:
		return "moderate"
	default:
		return "limited"
	}
}

// weekStart returns the Monday of the week containing t.
func weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// lastPeriods totals date-sorted records per period and keeps the last n
// periods that have data.
func lastPeriods(recs []domain.ConsumptionRecord, periodOf func(time.Time) time.Time, n int) []domain.PeriodTotal {
	var totals []domain.PeriodTotal
	for _, rec := range recs {
		start := periodOf(rec.Date)
		if len(totals) == 0 || !totals[len(totals)-1].PeriodStart.Equal(start) {
			totals = append(totals, domain.PeriodTotal{PeriodStart: start})
		}
		totals[len(totals)-1].Quantity += rec.QuantityDispensed
	}
	if len(totals) > n {
		totals = totals[len(totals)-n:]
	}
	return totals
}
