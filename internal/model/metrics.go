package model

// PerformanceMetrics holds closed-form growth and risk statistics for one series.
// Percentages are expressed in percent units; CAGR is a fraction.
type PerformanceMetrics struct {
	CAGR                 float64  `json:"cagr"`
	PriceMultiple        float64  `json:"price_multiple"`
	TotalReturnPct       float64  `json:"total_return_pct"`
	AnnualizedVolatility float64  `json:"annualized_volatility"`
	MaxDrawdown          float64  `json:"max_drawdown"`
	YearsAnalyzed        float64  `json:"years_analyzed"`
	PositiveYearRatio    float64  `json:"positive_year_ratio"`
	WorstRolling12M      *float64 `json:"worst_rolling_12m,omitempty"` // nil when history is under 253 bars
	BestYear             *int     `json:"best_year,omitempty"`
	WorstYear            *int     `json:"worst_year,omitempty"`
}

// CAGRPct returns CAGR in percent units.
func (m PerformanceMetrics) CAGRPct() float64 { return m.CAGR * 100 }
