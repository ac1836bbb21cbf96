package narrative

import (
	"errors"
	"fmt"
	"math"

	"TrendScope/internal/model"
)

// ErrFieldWritten is returned when a narrative field is written twice.
var ErrFieldWritten = errors.New("narrative field already written")

// Facts is the deterministic analytics seen by every generation step.
// It is built once from a snapshot and never modified afterwards.
type Facts struct {
	Ticker              string                   `json:"ticker"`
	Benchmark           string                   `json:"benchmark"`
	AnalysisPeriod      string                   `json:"analysis_period"`
	DominantTrend       model.Regime             `json:"dominant_trend"`
	TrendConfidence     float64                  `json:"trend_confidence"`
	TrendDistribution   map[model.Regime]float64 `json:"trend_distribution"`
	RecentTrend         model.Regime             `json:"recent_trend"`
	CAGRPct             float64                  `json:"cagr"`
	PriceMultiple       float64                  `json:"price_multiple"`
	MaxDrawdown         float64                  `json:"max_drawdown"`
	BestYear            *int                     `json:"best_year"`
	WorstYear           *int                     `json:"worst_year"`
	VolatilitySummary   string                   `json:"volatility_summary"`
	RedFlags            []string                 `json:"red_flags"`
	BenchmarkComparison map[string]string        `json:"benchmark_comparison"`
}

// FactsFromSnapshot copies the fields the narrative needs out of a snapshot.
func FactsFromSnapshot(s *model.AnalysisSnapshot) Facts {
	dist := make(map[model.Regime]float64, len(s.Trend.Distribution))
	for k, v := range s.Trend.Distribution {
		dist[k] = round2(v)
	}
	return Facts{
		Ticker:              s.Ticker,
		Benchmark:           s.Benchmark,
		AnalysisPeriod:      s.Period,
		DominantTrend:       s.Trend.Dominant,
		TrendConfidence:     round2(s.Trend.DominantConfidence),
		TrendDistribution:   dist,
		RecentTrend:         s.Trend.Recent,
		CAGRPct:             round2(s.Metrics.CAGRPct()),
		PriceMultiple:       round2(s.Metrics.PriceMultiple),
		MaxDrawdown:         round2(s.Metrics.MaxDrawdown),
		BestYear:            copyInt(s.Metrics.BestYear),
		WorstYear:           copyInt(s.Metrics.WorstYear),
		VolatilitySummary:   s.VolatilitySummary,
		RedFlags:            append([]string(nil), s.RedFlags...),
		BenchmarkComparison: benchmarkComparison(s),
	}
}

func benchmarkComparison(s *model.AnalysisSnapshot) map[string]string {
	if s.BenchmarkMetrics == nil {
		return map[string]string{"vs_index": "Not evaluated", "vs_sector": "Not evaluated"}
	}
	b := s.BenchmarkMetrics
	return map[string]string{
		"vs_index": fmt.Sprintf("%s CAGR %.2f%% vs %s CAGR %.2f%%; volatility %.2f%% vs %.2f%%",
			s.Ticker, s.Metrics.CAGRPct(), s.Benchmark, b.CAGRPct(),
			s.Metrics.AnnualizedVolatility, b.AnnualizedVolatility),
		"vs_sector": "Not evaluated",
	}
}

// Field is a narrative output that can be written exactly once.
type Field struct {
	value string
	set   bool
}

// Set stores v, failing with ErrFieldWritten if the field already holds a value.
func (f *Field) Set(v string) error {
	if f.set {
		return ErrFieldWritten
	}
	f.value, f.set = v, true
	return nil
}

// Get returns the value and whether it has been written.
func (f *Field) Get() (string, bool) { return f.value, f.set }

// State is the narrative record threaded through the generation graph.
type State struct {
	Facts Facts

	ExecSummary       Field
	TrendExplanation  Field
	RiskAnalysis      Field
	BenchmarkAnalysis Field
	FinalNarrative    Field
}

// NewState seeds a State from facts with every output empty.
func NewState(facts Facts) *State { return &State{Facts: facts} }

// Briefing is the input of the fan-out steps.
type Briefing struct {
	Facts       Facts
	ExecSummary string
}

// Sections is the input of the consolidating step.
type Sections struct {
	ExecSummary       string
	TrendExplanation  string
	RiskAnalysis      string
	BenchmarkAnalysis string
}

// Briefing returns the fan-out input once the executive summary exists.
func (s *State) Briefing() (Briefing, error) {
	summary, err := require("exec_summary", &s.ExecSummary)
	if err != nil {
		return Briefing{}, err
	}
	return Briefing{Facts: s.Facts, ExecSummary: summary}, nil
}

// Sections returns the consolidation input once all four sections exist.
func (s *State) Sections() (Sections, error) {
	var out Sections
	var err error
	if out.ExecSummary, err = require("exec_summary", &s.ExecSummary); err != nil {
		return out, err
	}
	if out.TrendExplanation, err = require("trend_explanation", &s.TrendExplanation); err != nil {
		return out, err
	}
	if out.RiskAnalysis, err = require("risk_analysis", &s.RiskAnalysis); err != nil {
		return out, err
	}
	if out.BenchmarkAnalysis, err = require("benchmark_analysis", &s.BenchmarkAnalysis); err != nil {
		return out, err
	}
	return out, nil
}

// Narrative is the finished output of a generation run.
type Narrative struct {
	ExecSummary       string `json:"exec_summary"`
	TrendExplanation  string `json:"trend_explanation"`
	RiskAnalysis      string `json:"risk_analysis"`
	BenchmarkAnalysis string `json:"benchmark_analysis"`
	FinalNarrative    string `json:"final_narrative"`
}

// Narrative returns all outputs, failing if any step has not written yet.
func (s *State) Narrative() (*Narrative, error) {
	sections, err := s.Sections()
	if err != nil {
		return nil, err
	}
	final, err := require("final_narrative", &s.FinalNarrative)
	if err != nil {
		return nil, err
	}
	return &Narrative{
		ExecSummary:       sections.ExecSummary,
		TrendExplanation:  sections.TrendExplanation,
		RiskAnalysis:      sections.RiskAnalysis,
		BenchmarkAnalysis: sections.BenchmarkAnalysis,
		FinalNarrative:    final,
	}, nil
}

func require(name string, f *Field) (string, error) {
	v, ok := f.Get()
	if !ok {
		return "", fmt.Errorf("narrative field %s not written yet", name)
	}
	return v, nil
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
