package engine

import "math"

// Predict projects the quantity an item will consume over the next days
// using its window mean and seasonal factor. Unknown items and items with a
// zero mean return (0, 0).
func (e *Engine) Predict(id int64, days int) (int, float64) {
	s, ok := e.stats[id]
	if !ok || s.AvgDaily == 0 {
		return 0, 0
	}

	quantity := int(math.Floor(s.AvgDaily * s.SeasonalFactor * float64(days)))
	confidence := clamp(1-s.StdDaily/s.AvgDaily, 0.3, 0.95)
	return quantity, confidence
}
