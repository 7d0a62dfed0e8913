package engine

import (
	"math"
	"sort"

	"github.com/medflow/medpredict-backend/internal/prediction/domain"
)

// DetectAnomalies flags days in the item's last `days` days of history whose
// quantity is more than threshold standard deviations away from the mean of
// the seven records before it. The first seven records of the lookback window
// only seed the baseline. Items outside the trend-eligible set, or with fewer
// than ten records in the lookback window, yield no anomalies.
//
// The baseline excludes the day being scored: a window that includes it
// bounds |z| by 6/sqrt(7), below any useful threshold.
func (e *Engine) DetectAnomalies(id int64, days int, threshold float64) []domain.Anomaly {
	if _, ok := e.trends[id]; !ok {
		return nil
	}

	recs := e.history[id]
	cutoff := recs[len(recs)-1].Date.AddDate(0, 0, -days)
	start := sort.Search(len(recs), func(i int) bool { return !recs[i].Date.Before(cutoff) })
	window := recs[start:]
	if len(window) < minAnomalyWindowSize {
		return nil
	}

	values := make([]float64, len(window))
	for i, rec := range window {
		values[i] = float64(rec.QuantityDispensed)
	}

	name := e.itemName(id)
	var anomalies []domain.Anomaly
	for i := rollingWindow; i < len(values); i++ {
		span := values[i-rollingWindow : i]
		expected := mean(span)
		std := sampleStd(span)
		if math.IsNaN(std) || std == 0 {
			continue
		}

		z := (values[i] - expected) / std
		if math.Abs(z) <= threshold {
			continue
		}

		kind := domain.AnomalySpike
		if z < 0 {
			kind = domain.AnomalyDrop
		}

		anomalies = append(anomalies, domain.Anomaly{
			ItemID:    id,
			ItemName:  name,
			Date:      window[i].Date,
			Actual:    window[i].QuantityDispensed,
			Expected:  roundTo(expected, 1),
			Deviation: roundTo(z, 2),
			Type:      kind,
			Severity:  severityOf(z),
		})
	}

	return anomalies
}

func severityOf(z float64) domain.Severity {
	switch a := math.Abs(z); {
	case a > 4:
		return domain.SeverityHigh
	case a > 3:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

// DetectAllAnomalies runs DetectAnomalies with the engine threshold over
// every trend-eligible item, keeps those at or above minSeverity and orders
// them by severity, then date, both descending.
func (e *Engine) DetectAllAnomalies(days int, minSeverity domain.Severity) []domain.Anomaly {
	all := []domain.Anomaly{}
	for _, id := range e.trendOrder {
		for _, a := range e.DetectAnomalies(id, days, e.anomalyThreshold) {
			if a.Severity >= minSeverity {
				all = append(all, a)
			}
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Severity != all[j].Severity {
			return all[i].Severity > all[j].Severity
		}
		return all[i].Date.After(all[j].Date)
	})
	return all
}
