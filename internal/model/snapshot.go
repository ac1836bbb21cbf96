package model

import "time"

// SummaryFlags are boolean highlights derived from the metrics.
type SummaryFlags struct {
	OutperformedBenchmark         bool `json:"outperformed_benchmark"`
	HigherVolatilityThanBenchmark bool `json:"higher_volatility_than_benchmark"`
	StrongCompounder              bool `json:"strong_compounder"`
	DeepDrawdowns                 bool `json:"deep_drawdowns"`
}

// AnalysisSnapshot is the deterministic result of one analysis run and the
// input to narrative generation.
type AnalysisSnapshot struct {
	RunID             string              `json:"run_id"`
	Ticker            string              `json:"ticker"`
	Benchmark         string              `json:"benchmark"`
	Years             int                 `json:"years"`
	Period            string              `json:"period"`
	GeneratedAt       time.Time           `json:"generated_at"`
	Trend             TrendSummary        `json:"trend"`
	Metrics           PerformanceMetrics  `json:"metrics"`
	BenchmarkMetrics  *PerformanceMetrics `json:"benchmark_metrics,omitempty"`
	Flags             SummaryFlags        `json:"flags"`
	VolatilitySummary string              `json:"volatility_summary"`
	RedFlags          []string            `json:"red_flags"`
}
