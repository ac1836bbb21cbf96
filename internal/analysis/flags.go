package analysis

import (
	"fmt"

	"TrendScope/internal/model"
)

const (
	strongCompounderCAGR = 0.15
	deepDrawdownPct      = -30
	highVolatilityPct    = 40
	severeRolling12MPct  = -30
)

// Summarize fills the flags, volatility summary and red flags of a snapshot
// from its metrics and trend summary.
func Summarize(snap *model.AnalysisSnapshot) {
	m := snap.Metrics
	flags := model.SummaryFlags{
		StrongCompounder: m.CAGR >= strongCompounderCAGR,
		DeepDrawdowns:    m.MaxDrawdown <= deepDrawdownPct,
	}
	if b := snap.BenchmarkMetrics; b != nil {
		flags.OutperformedBenchmark = m.CAGR > b.CAGR
		flags.HigherVolatilityThanBenchmark = m.AnnualizedVolatility > b.AnnualizedVolatility
	}
	snap.Flags = flags
	snap.VolatilitySummary = VolatilitySummary(m.AnnualizedVolatility)
	snap.RedFlags = redFlags(snap)
}

// VolatilitySummary buckets annualized volatility (in percent).
func VolatilitySummary(volPct float64) string {
	switch {
	case volPct < 20:
		return "low"
	case volPct < 35:
		return "moderate"
	default:
		return "high"
	}
}

func redFlags(snap *model.AnalysisSnapshot) []string {
	m := snap.Metrics
	flags := []string{}
	if m.MaxDrawdown <= deepDrawdownPct {
		flags = append(flags, fmt.Sprintf("Deep historical drawdown of %.1f%%", m.MaxDrawdown))
	}
	if m.AnnualizedVolatility > highVolatilityPct {
		flags = append(flags, fmt.Sprintf("High annualized volatility of %.1f%%", m.AnnualizedVolatility))
	}
	if m.WorstRolling12M != nil && *m.WorstRolling12M < severeRolling12MPct {
		flags = append(flags, fmt.Sprintf("Worst rolling 12-month return of %.1f%%", *m.WorstRolling12M))
	}
	if t := snap.Trend; t.Recent == model.RegimeDowntrend && t.Dominant != model.RegimeDowntrend {
		flags = append(flags, fmt.Sprintf("Recent trend is DOWNTREND against a long-term %s", t.Dominant))
	}
	if b := snap.BenchmarkMetrics; b != nil && m.CAGR < b.CAGR {
		flags = append(flags, fmt.Sprintf("CAGR of %.1f%% trailed %s at %.1f%%", m.CAGRPct(), snap.Benchmark, b.CAGRPct()))
	}
	return flags
}
