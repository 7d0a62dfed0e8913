package engine

import (
	"math"
	"time"

	"github.com/medflow/medpredict-backend/internal/prediction/domain"
)

// buildItemStatistics summarizes each item over the windowDays-long
// statistics window ending at maxDate. Items without records in the window
// get no entry.
func buildItemStatistics(history map[int64][]domain.ConsumptionRecord, order []int64, maxDate time.Time, windowDays int) map[int64]domain.ItemStatistics {
	stats := make(map[int64]domain.ItemStatistics)
	if maxDate.IsZero() {
		return stats
	}

	cutoff := maxDate.AddDate(0, 0, -windowDays)
	month := maxDate.Month()

	for _, id := range order {
		var window, sameMonth []float64
		total := 0
		for _, rec := range history[id] {
			q := float64(rec.QuantityDispensed)
			if rec.Date.Month() == month {
				sameMonth = append(sameMonth, q)
			}
			if !rec.Date.Before(cutoff) {
				window = append(window, q)
				total += rec.QuantityDispensed
			}
		}
		if len(window) == 0 {
			continue
		}

		avg := mean(window)
		std := sampleStd(window)
		if math.IsNaN(std) {
			std = 0
		}

		stats[id] = domain.ItemStatistics{
			ItemID:         id,
			AvgDaily:       avg,
			StdDaily:       std,
			TotalWindow:    total,
			DaysWithData:   len(window),
			AvgWeekly:      avg * 7,
			SeasonalFactor: seasonalFactor(sameMonth, avg),
		}
	}

	return stats
}

// seasonalFactor compares the item's all-years average for the reference
// month with its window average.
func seasonalFactor(sameMonth []float64, windowMean float64) float64 {
	if len(sameMonth) == 0 || windowMean == 0 {
		return 1.0
	}
	return clamp(mean(sameMonth)/windowMean, 0.5, 2.0)
}

// ItemStatistics returns the trailing-window statistics for an item.
func (e *Engine) ItemStatistics(id int64) (domain.ItemStatistics, bool) {
	s, ok := e.stats[id]
	return s, ok
}

// StatsWindowDays is the length of the statistics window in days.
func (e *Engine) StatsWindowDays() int {
	return e.statsWindow
}

// AnomalyThreshold is the z-score threshold applied when none is given.
func (e *Engine) AnomalyThreshold() float64 {
	return e.anomalyThreshold
}
