package trend

import (
	"math"

	"TrendScope/internal/calculator"
)

const (
	structureLookback = 3
	fastMAPeriod      = 50
	slowMAPeriod      = 200
)

// Scores holds the three sub-scores of one window.
type Scores struct {
	Direction  float64 // 0-40
	Structure  float64 // 0-40
	Volatility float64 // 0-20
}

// Total returns the combined 0-100 score.
func (s Scores) Total() float64 { return s.Direction + s.Structure + s.Volatility }

// band maps values strictly above Above to Score.
type band struct {
	Above float64
	Score float64
}

var directionBands = []band{
	{0.15, 40},
	{0.05, 30},
	{-0.05, 20},
	{-0.15, 10},
}

var ratioBands = []band{
	{0.7, 13},
	{0.5, 8},
}

func scoreBands(v float64, bands []band, fallback float64) float64 {
	for _, b := range bands {
		if v > b.Above {
			return b.Score
		}
	}
	return fallback
}

// ScoreWindow scores a window of close prices ordered oldest first.
func ScoreWindow(closes []float64) Scores {
	return Scores{
		Direction:  directionScore(closes),
		Structure:  structureScore(closes),
		Volatility: volatilityScore(closes),
	}
}

// directionScore grades the regression slope against the window's range.
// The slope is scaled by n-1 so the figure is the fitted rise across the
// whole window, making it independent of the window length.
func directionScore(closes []float64) float64 {
	lo, hi := calculator.MinMax(closes)
	priceRange := hi - lo
	slope := calculator.OLSSlope(closes)
	if priceRange == 0 || math.IsNaN(slope) {
		return 20
	}
	normalized := slope * float64(len(closes)-1) / priceRange
	return scoreBands(normalized, directionBands, 0)
}

func structureScore(closes []float64) float64 {
	n := len(closes)

	highs := calculator.RollingMax(closes, structureLookback)
	lows := calculator.RollingMin(closes, structureLookback)
	ratio := nanMean(risingFraction(highs, n), risingFraction(lows, n))
	score := scoreBands(ratio, ratioBands, 3)

	fast := calculator.RollingMean(closes, fastMAPeriod)
	slow := calculator.RollingMean(closes, slowMAPeriod)
	aboveFast := aboveFraction(closes, fast)
	aboveSlow := aboveFraction(closes, slow)
	switch {
	case aboveFast > 0.7 && aboveSlow > 0.7:
		score += 13
	case aboveFast > 0.7:
		score += 8
	default:
		score += 3
	}

	switch c := crossovers(fast, slow); {
	case c <= 1:
		score += 13
	case c <= 3:
		score += 8
	default:
		score += 3
	}
	return score
}

func volatilityScore(closes []float64) float64 {
	if len(closes) == 0 {
		return 0
	}
	returns := calculator.PctChange(closes)
	vol := calculator.SampleStdDev(returns)
	change := closes[len(closes)-1] - closes[0]

	switch {
	case change > 0 && vol < 2*calculator.Mean(returns):
		return 20
	case change > 0:
		return 15
	case math.Abs(change) < calculator.SampleStdDev(closes):
		return 8
	default:
		return 0
	}
}

// risingFraction counts periods whose value exceeds the previous one.
// Comparisons involving an undefined value count as not rising; the
// denominator is the full window length.
func risingFraction(values []float64, n int) float64 {
	if n == 0 {
		return math.NaN()
	}
	rising := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[i-1] {
			rising++
		}
	}
	return float64(rising) / float64(n)
}

func aboveFraction(closes, ma []float64) float64 {
	if len(closes) == 0 {
		return 0
	}
	above := 0
	for i, c := range closes {
		if c > ma[i] {
			above++
		}
	}
	return float64(above) / float64(len(closes))
}

// crossovers counts flips of fast > slow between consecutive periods.
// An undefined average reads as "not above".
func crossovers(fast, slow []float64) int {
	flips := 0
	for i := 1; i < len(fast); i++ {
		prev := fast[i-1] > slow[i-1]
		cur := fast[i] > slow[i]
		if prev != cur {
			flips++
		}
	}
	return flips
}

func nanMean(values ...float64) float64 {
	sum, n := 0.0, 0
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}
