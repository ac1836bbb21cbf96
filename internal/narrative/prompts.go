package narrative

import (
	"fmt"

	"github.com/goccy/go-json"
)

const (
	execSummarySystem = "You are a financial analytics assistant. " +
		"Explain historical stock performance only. " +
		"Do not provide investment advice or predictions."
	trendSystem     = "You explain historical trend behavior using evidence only."
	riskSystem      = "You explain historical risks conservatively."
	benchmarkSystem = "You compare historical performance neutrally."
	finalSystem     = "You generate neutral, investor-facing summaries."
)

// Prompt is a system and user message pair.
type Prompt struct {
	System string
	User   string
}

func dataBlock(f Facts) string {
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", f)
	}
	return string(b)
}

func execSummaryPrompt(f Facts) Prompt {
	return Prompt{
		System: execSummarySystem,
		User: fmt.Sprintf(`Write a concise executive summary (4-5 sentences).
State the dominant trend and confidence level.
Mention recent trend if different from long-term trend.

DATA:
%s
`, dataBlock(f)),
	}
}

func trendPrompt(b Briefing) Prompt {
	f := b.Facts
	return Prompt{
		System: trendSystem,
		User: fmt.Sprintf(`Explain why the stock is classified as %s.

Use the following evidence:
- CAGR over the analysis period: %.2f%%
- Price multiple over the period: %.2fx
- Trend distribution: %v
- Recent trend behavior: %s

If the stock shows strong long-term returns despite consolidation phases,
explicitly explain this nuance.

Avoid speculation or future-oriented language.

EXECUTIVE SUMMARY:
%s

DATA:
%s
`, f.DominantTrend, f.CAGRPct, f.PriceMultiple, f.TrendDistribution, f.RecentTrend,
			b.ExecSummary, dataBlock(f)),
	}
}

func riskPrompt(b Briefing) Prompt {
	return Prompt{
		System: riskSystem,
		User: fmt.Sprintf(`Summarize the key historical risks and red flags.
Explain why they matter historically.
Do not exaggerate risk or predict losses.

EXECUTIVE SUMMARY:
%s

DATA:
%s
`, b.ExecSummary, dataBlock(b.Facts)),
	}
}

func benchmarkPrompt(b Briefing) Prompt {
	return Prompt{
		System: benchmarkSystem,
		User: fmt.Sprintf(`Explain how the stock performed relative to its benchmark and sector.
Focus strictly on historical comparison.
Avoid judgement or advice.

EXECUTIVE SUMMARY:
%s

DATA:
%s
`, b.ExecSummary, dataBlock(b.Facts)),
	}
}

func finalPrompt(s Sections) Prompt {
	return Prompt{
		System: finalSystem,
		User: fmt.Sprintf(`Combine the following sections into a single investor-friendly narrative.
Ensure consistency in tone and confidence.
End with a reminder that this analysis is historical and informational only.

EXECUTIVE SUMMARY:
%s

TREND EXPLANATION:
%s

RISKS & RED FLAGS:
%s

BENCHMARK COMPARISON:
%s
`, s.ExecSummary, s.TrendExplanation, s.RiskAnalysis, s.BenchmarkAnalysis),
	}
}
