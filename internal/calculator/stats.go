package calculator

import (
	"math"

	"github.com/markcheno/go-talib"
)

// Mean returns the arithmetic mean, or NaN for an empty slice.
func Mean(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return math.NaN()
	}
	return talib.Sma(values, n)[n-1]
}

// SampleStdDev returns the sample (n-1) standard deviation, or NaN when
// fewer than two values are given.
func SampleStdDev(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return math.NaN()
	}
	// talib reports the population deviation and clamps variance below
	// 1e-14 to zero, so series with values near 1e-7 or smaller read as
	// flat. Prices never get there.
	pop := talib.StdDev(values, n, 1.0)[n-1]
	return pop * math.Sqrt(float64(n)/float64(n-1))
}

// PctChange returns period-over-period fractional changes (len(values)-1 items).
func PctChange(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	return talib.Rocp(values, 1)[1:]
}

// RollingReturn returns the fractional change over `period` bars for each
// index, NaN where the lookback is not yet available.
func RollingReturn(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) <= period {
		return out
	}
	roc := talib.Rocp(values, period)
	copy(out[period:], roc[period:])
	return out
}

// RollingMean returns the trailing simple moving average, NaN during warm-up.
func RollingMean(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	sma := talib.Sma(values, period)
	copy(out[period-1:], sma[period-1:])
	return out
}

// RollingMax returns the trailing maximum, NaN during warm-up.
func RollingMax(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	if period == 1 {
		copy(out, values)
		return out
	}
	mx := talib.Max(values, period)
	copy(out[period-1:], mx[period-1:])
	return out
}

// RollingMin returns the trailing minimum, NaN during warm-up.
func RollingMin(values []float64, period int) []float64 {
	out := nanSlice(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	if period == 1 {
		copy(out, values)
		return out
	}
	mn := talib.Min(values, period)
	copy(out[period-1:], mn[period-1:])
	return out
}

// OLSSlope fits price against a 0-based index and returns the slope.
// Returns NaN for fewer than two points.
func OLSSlope(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return math.NaN()
	}
	return talib.LinearRegSlope(values, n)[n-1]
}

// MinMax returns the smallest and largest value.
func MinMax(values []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
