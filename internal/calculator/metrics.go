package calculator

import (
	"fmt"
	"math"

	"TrendScope/internal/model"
)

const (
	tradingDaysPerYear = 252
	daysPerYear        = 365.25
)

// ComputeMetrics derives growth and risk statistics from a daily series.
func ComputeMetrics(series *model.PriceSeries) (model.PerformanceMetrics, error) {
	var m model.PerformanceMetrics
	if series == nil || series.Len() < 2 {
		return m, fmt.Errorf("%w: need at least 2 bars", model.ErrInsufficientData)
	}
	first, last := series.First(), series.Last()
	days := last.Time.Sub(first.Time).Hours() / 24
	if days <= 0 {
		return m, fmt.Errorf("%w: series spans zero days", model.ErrInsufficientData)
	}
	if first.Close <= 0 {
		return m, fmt.Errorf("%w: non-positive start price %.4f", model.ErrData, first.Close)
	}

	closes := series.Closes()
	years := days / daysPerYear
	multiple := last.Close / first.Close

	m.YearsAnalyzed = years
	m.PriceMultiple = multiple
	m.TotalReturnPct = (multiple - 1) * 100
	m.CAGR = math.Pow(multiple, 1/years) - 1

	if vol := SampleStdDev(PctChange(closes)); !math.IsNaN(vol) {
		m.AnnualizedVolatility = vol * math.Sqrt(tradingDaysPerYear) * 100
	}
	m.MaxDrawdown = MaxDrawdown(closes)

	if worst, ok := worstRollingReturn(closes, tradingDaysPerYear); ok {
		m.WorstRolling12M = &worst
	}

	yearly := YearlyReturns(series)
	if len(yearly) > 0 {
		positive := 0
		best, worst := yearly[0], yearly[0]
		for _, y := range yearly {
			if y.Return > 0 {
				positive++
			}
			if y.Return > best.Return {
				best = y
			}
			if y.Return < worst.Return {
				worst = y
			}
		}
		m.PositiveYearRatio = float64(positive) / float64(len(yearly))
		m.BestYear = &best.Year
		m.WorstYear = &worst.Year
	}
	return m, nil
}

// Drawdowns returns the percentage distance of each close from its running
// maximum (always <= 0).
func Drawdowns(closes []float64) []float64 {
	out := make([]float64, len(closes))
	peak := math.Inf(-1)
	for i, c := range closes {
		if c > peak {
			peak = c
		}
		out[i] = (c/peak - 1) * 100
	}
	return out
}

// MaxDrawdown returns the deepest drawdown in percent.
func MaxDrawdown(closes []float64) float64 {
	lo, _ := MinMax(Drawdowns(closes))
	if math.IsInf(lo, 0) {
		return 0
	}
	return lo
}

// YearReturn is the close-to-close return of one calendar year.
type YearReturn struct {
	Year   int
	Return float64
}

// YearlyReturns computes year-over-year returns from calendar-year closes.
// The first year has no prior close and is omitted.
func YearlyReturns(series *model.PriceSeries) []YearReturn {
	closes := YearlyCloses(series)
	if len(closes) < 2 {
		return nil
	}
	out := make([]YearReturn, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		out = append(out, YearReturn{
			Year:   closes[i].Year,
			Return: closes[i].Close/closes[i-1].Close - 1,
		})
	}
	return out
}

func worstRollingReturn(closes []float64, period int) (float64, bool) {
	if len(closes) <= period {
		return 0, false
	}
	worst := math.Inf(1)
	for _, r := range RollingReturn(closes, period)[period:] {
		if r < worst {
			worst = r
		}
	}
	return worst * 100, true
}
