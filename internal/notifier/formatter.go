package notifier

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"unicode/utf8"

	"TrendScope/internal/analysis"
	"TrendScope/internal/model"
)

// MaxMessageLen is the Telegram message size limit in characters.
const MaxMessageLen = 4096

var regimeIcon = map[model.Regime]string{
	model.RegimeUptrend:   "📈",
	model.RegimeSideways:  "↔️",
	model.RegimeDowntrend: "📉",
}

// FormatSnapshot formats an analysis snapshot into a Telegram message.
func FormatSnapshot(snap *model.AnalysisSnapshot) string {
	var b strings.Builder
	t, m := snap.Trend, snap.Metrics

	b.WriteString(fmt.Sprintf("📊 <b>%s</b> | %s\n", html.EscapeString(snap.Ticker), html.EscapeString(snap.Period)))
	b.WriteString(fmt.Sprintf("Generated: %s\n\n", snap.GeneratedAt.Format("2006-01-02 15:04")))

	b.WriteString("<b>Trend</b>\n")
	b.WriteString(fmt.Sprintf("  Dominant: %s %s (confidence %.1f)\n", regimeIcon[t.Dominant], t.Dominant, t.DominantConfidence))
	b.WriteString(fmt.Sprintf("  Recent: %s %s\n", regimeIcon[t.Recent], t.Recent))
	for _, r := range model.Regimes {
		b.WriteString(fmt.Sprintf("  %s: %.0f%%\n", r, t.Distribution[r]*100))
	}

	b.WriteString("\n<b>Performance</b>\n")
	b.WriteString(fmt.Sprintf("  CAGR: %+.2f%% | Multiple: %.2fx\n", m.CAGRPct(), m.PriceMultiple))
	b.WriteString(fmt.Sprintf("  Volatility: %.1f%% (%s)\n", m.AnnualizedVolatility, snap.VolatilitySummary))
	b.WriteString(fmt.Sprintf("  Max drawdown: %.1f%%\n", m.MaxDrawdown))
	if m.WorstRolling12M != nil {
		b.WriteString(fmt.Sprintf("  Worst 12m: %.1f%%\n", *m.WorstRolling12M))
	}
	if m.BestYear != nil && m.WorstYear != nil {
		b.WriteString(fmt.Sprintf("  Best year: %d | Worst year: %d\n", *m.BestYear, *m.WorstYear))
	}
	b.WriteString(fmt.Sprintf("  Positive years: %.0f%%\n", m.PositiveYearRatio*100))

	if bm := snap.BenchmarkMetrics; bm != nil {
		b.WriteString(fmt.Sprintf("\n<b>vs %s</b>\n", html.EscapeString(snap.Benchmark)))
		b.WriteString(fmt.Sprintf("  CAGR: %+.2f%% | Volatility: %.1f%%\n", bm.CAGRPct(), bm.AnnualizedVolatility))
		verdict := "underperformed"
		if snap.Flags.OutperformedBenchmark {
			verdict = "outperformed"
		}
		b.WriteString(fmt.Sprintf("  %s %s\n", snap.Ticker, verdict))
	} else {
		b.WriteString(fmt.Sprintf("\nBenchmark %s: not evaluated\n", html.EscapeString(snap.Benchmark)))
	}

	if len(snap.RedFlags) > 0 {
		b.WriteString("\n⚠️ <b>Red flags</b>\n")
		for _, f := range snap.RedFlags {
			b.WriteString("  • " + html.EscapeString(f) + "\n")
		}
	}
	return b.String()
}

// FormatFullAnalysis appends the generated narrative to the snapshot report.
// The narrative is cut to the space left under MaxMessageLen before it is
// escaped, so the cut never lands inside an entity.
func FormatFullAnalysis(full *analysis.FullAnalysis) string {
	var b strings.Builder
	b.WriteString(FormatSnapshot(full.Snapshot))
	if full.Narrative != nil {
		b.WriteString("\n📝 <b>Narrative</b>\n")
		budget := MaxMessageLen - utf8.RuneCountInString(b.String()) - 1
		b.WriteString(escapeWithin(full.Narrative.FinalNarrative, budget))
		b.WriteString("\n")
	}
	return Truncate(b.String(), MaxMessageLen)
}

// escapeWithin HTML-escapes s, dropping trailing text so the escaped result
// is at most limit characters including the cut marker.
func escapeWithin(s string, limit int) string {
	escaped := html.EscapeString(s)
	if utf8.RuneCountInString(escaped) <= limit {
		return escaped
	}
	const marker = "…"
	if limit < 1 {
		return ""
	}
	var b strings.Builder
	n := 0
	for _, r := range s {
		e := html.EscapeString(string(r))
		w := utf8.RuneCountInString(e)
		if n+w > limit-1 {
			break
		}
		b.WriteString(e)
		n += w
	}
	return b.String() + marker
}

// FormatWatchlistReport formats the scheduled report across tickers. Failed
// tickers are listed with their error.
func FormatWatchlistReport(snaps []*model.AnalysisSnapshot, failures map[string]error) string {
	var b strings.Builder
	b.WriteString("🗓 <b>TrendScope watchlist</b>\n\n")
	for _, s := range snaps {
		b.WriteString(fmt.Sprintf("%s <b>%s</b> %s (%.0f) | recent %s | CAGR %+.1f%% | DD %.0f%%\n",
			regimeIcon[s.Trend.Dominant], html.EscapeString(s.Ticker), s.Trend.Dominant,
			s.Trend.DominantConfidence, s.Trend.Recent, s.Metrics.CAGRPct(), s.Metrics.MaxDrawdown))
	}
	failed := make([]string, 0, len(failures))
	for ticker := range failures {
		failed = append(failed, ticker)
	}
	sort.Strings(failed)
	for _, ticker := range failed {
		b.WriteString(fmt.Sprintf("❌ <b>%s</b>: %s\n", html.EscapeString(ticker), html.EscapeString(failures[ticker].Error())))
	}
	return Truncate(b.String(), MaxMessageLen)
}

// Truncate shortens s to at most limit characters, marking the cut. The cut
// backs off so it never leaves a partial HTML entity or tag at the end.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	const marker = "\n…"
	runes := []rune(s)
	cut := string(runes[:limit-utf8.RuneCountInString(marker)])
	if i := strings.LastIndexByte(cut, '&'); i >= 0 && !strings.Contains(cut[i:], ";") {
		cut = cut[:i]
	}
	if i := strings.LastIndexByte(cut, '<'); i >= 0 && !strings.Contains(cut[i:], ">") {
		cut = cut[:i]
	}
	return cut + marker
}
