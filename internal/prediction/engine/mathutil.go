package engine

import (
	"math"
	"time"
)

const day = 24 * time.Hour

// DateOf truncates t to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween returns the whole calendar days from a to b.
func daysBetween(a, b time.Time) int {
	return int(DateOf(b).Sub(DateOf(a)) / day)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sampleStd is the n-1 standard deviation. It returns NaN for fewer than two
// values so callers can apply their own fallback.
func sampleStd(xs []float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

func populationStd(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)))
}

// regression is an ordinary least squares fit of ys against their index.
type regression struct {
	slope     float64
	intercept float64
	rSquared  float64
}

func fitIndex(ys []float64) regression {
	n := float64(len(ys))
	if len(ys) < 2 {
		return regression{intercept: mean(ys)}
	}

	xMean := (n - 1) / 2
	yMean := mean(ys)

	var sxx, sxy, syy float64
	for i, y := range ys {
		dx := float64(i) - xMean
		dy := y - yMean
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}

	slope := sxy / sxx
	r := regression{
		slope:     slope,
		intercept: yMean - slope*xMean,
	}
	if syy > 0 {
		r.rSquared = (sxy * sxy) / (sxx * syy)
	}
	return r
}

// normalQuantile returns z such that a standard normal variable lies within
// [-z, z] with the given probability.
func normalQuantile(level float64) float64 {
	return math.Sqrt2 * math.Erfinv(level)
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

// roundTo rounds half away from zero to the given number of decimals.
func roundTo(x float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(x*p) / p
}
