package calculator

import (
	"errors"
	"math"
	"testing"
	"time"

	"TrendScope/internal/model"
)

func approx(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func rawTable(index []any, closes []float64) *model.RawTable {
	n := len(closes)
	return &model.RawTable{
		Index: index,
		Columns: map[string][]float64{
			"Open":   append([]float64(nil), closes...),
			"High":   append([]float64(nil), closes...),
			"Low":    append([]float64(nil), closes...),
			"Close":  closes,
			"Volume": make([]float64, n),
		},
	}
}

func dailySeries(start time.Time, closes []float64) *model.PriceSeries {
	s := &model.PriceSeries{Symbol: "TEST"}
	for i, c := range closes {
		s.Bars = append(s.Bars, model.OHLCV{
			Time: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c,
		})
	}
	return s
}

func TestNormalize_SortsAndKeepsLastDuplicate(t *testing.T) {
	table := rawTable(
		[]any{"2024-01-03", "2024-01-01", "2024-01-02", "2024-01-01"},
		[]float64{103, 101, 102, 111},
	)
	s, err := Normalize("ABC", table)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Len() != 3 {
		t.Fatalf("expected 3 bars, got %d", s.Len())
	}
	want := []float64{111, 102, 103}
	for i, c := range s.Closes() {
		if c != want[i] {
			t.Errorf("bar %d: expected close %.0f, got %.0f", i, want[i], c)
		}
	}
	for i := 1; i < s.Len(); i++ {
		if !s.Bars[i].Time.After(s.Bars[i-1].Time) {
			t.Errorf("timestamps not strictly increasing at %d", i)
		}
	}
}

func TestNormalize_DropsMissingClose(t *testing.T) {
	table := rawTable(
		[]any{"2024-01-01", "2024-01-02", "2024-01-03"},
		[]float64{100, math.NaN(), 102},
	)
	s, err := Normalize("ABC", table)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 bars, got %d", s.Len())
	}
}

func TestNormalize_Errors(t *testing.T) {
	missing := rawTable([]any{"2024-01-01"}, []float64{1})
	delete(missing.Columns, "Low")

	short := rawTable([]any{"2024-01-01", "2024-01-02"}, []float64{1, 2})
	short.Columns["High"] = []float64{1}

	tests := []struct {
		name  string
		table *model.RawTable
	}{
		{"nil table", nil},
		{"empty table", &model.RawTable{}},
		{"missing column", missing},
		{"length mismatch", short},
		{"bad index", rawTable([]any{"not a date"}, []float64{1})},
		{"all closes missing", rawTable([]any{"2024-01-01"}, []float64{math.NaN()})},
	}
	for _, tt := range tests {
		_, err := Normalize("ABC", tt.table)
		if !errors.Is(err, model.ErrData) {
			t.Errorf("%s: expected ErrData, got %v", tt.name, err)
		}
	}
}

func TestResampleWeekly(t *testing.T) {
	// Mon 2024-01-01 through Fri 2024-01-12, weekdays only.
	var bars []model.OHLCV
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	price := 100.0
	for day.Before(time.Date(2024, 1, 13, 0, 0, 0, 0, time.UTC)) {
		if day.Weekday() != time.Saturday && day.Weekday() != time.Sunday {
			bars = append(bars, model.OHLCV{
				Time: day, Open: price, High: price + 1, Low: price - 1, Close: price, Volume: 10,
			})
			price++
		}
		day = day.AddDate(0, 0, 1)
	}
	weekly := ResampleWeekly(&model.PriceSeries{Symbol: "W", Bars: bars})
	if weekly.Len() != 2 {
		t.Fatalf("expected 2 weekly bars, got %d", weekly.Len())
	}
	w := weekly.Bars[0]
	if w.Open != 100 || w.Close != 104 || w.High != 105 || w.Low != 99 || w.Volume != 50 {
		t.Errorf("unexpected first week: %+v", w)
	}
	if w.Time.Weekday() != time.Friday {
		t.Errorf("expected week to end on Friday, got %s", w.Time.Weekday())
	}
}

func TestSampleStdDev(t *testing.T) {
	got := SampleStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	want := 2 * math.Sqrt(8.0/7.0)
	if !approx(got, want, 1e-9) {
		t.Errorf("expected %.6f, got %.6f", want, got)
	}
	if !math.IsNaN(SampleStdDev([]float64{1})) {
		t.Error("expected NaN for a single value")
	}
}

func TestRollingWindows(t *testing.T) {
	values := []float64{1, 3, 2, 5, 4}
	mean := RollingMean(values, 3)
	mx := RollingMax(values, 3)
	mn := RollingMin(values, 3)
	for i := 0; i < 2; i++ {
		if !math.IsNaN(mean[i]) || !math.IsNaN(mx[i]) || !math.IsNaN(mn[i]) {
			t.Errorf("index %d: expected NaN during warm-up", i)
		}
	}
	if !approx(mean[4], 11.0/3.0, 1e-9) || mx[4] != 5 || mn[4] != 2 {
		t.Errorf("unexpected tail: mean=%v max=%v min=%v", mean[4], mx[4], mn[4])
	}
	if got := RollingMean(values, 10); !math.IsNaN(got[4]) {
		t.Error("expected all NaN when period exceeds length")
	}
}

func TestOLSSlope(t *testing.T) {
	up := []float64{10, 12, 14, 16, 18}
	if got := OLSSlope(up); !approx(got, 2, 1e-9) {
		t.Errorf("expected slope 2, got %v", got)
	}
	down := []float64{18, 16, 14, 12, 10}
	if got := OLSSlope(down); !approx(got, -2, 1e-9) {
		t.Errorf("expected slope -2, got %v", got)
	}
}

func TestMaxDrawdown(t *testing.T) {
	if got := MaxDrawdown([]float64{100, 120, 90, 130}); !approx(got, -25, 1e-9) {
		t.Errorf("expected -25, got %v", got)
	}
	if got := MaxDrawdown([]float64{1, 2, 3}); got != 0 {
		t.Errorf("expected 0 for a monotonic rise, got %v", got)
	}
}

func TestComputeMetrics_CAGR(t *testing.T) {
	s := &model.PriceSeries{Symbol: "X", Bars: []model.OHLCV{
		{Time: time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC), Close: 100},
		{Time: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Close: 800},
	}}
	m, err := ComputeMetrics(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !approx(m.YearsAnalyzed, 8, 1e-9) {
		t.Errorf("expected 8 years, got %v", m.YearsAnalyzed)
	}
	if want := math.Pow(8, 1.0/8) - 1; !approx(m.CAGR, want, 1e-9) {
		t.Errorf("expected CAGR %.4f, got %.4f", want, m.CAGR)
	}
	if m.PriceMultiple != 8 || !approx(m.TotalReturnPct, 700, 1e-9) {
		t.Errorf("unexpected multiple/return: %v / %v", m.PriceMultiple, m.TotalReturnPct)
	}
	if m.WorstRolling12M != nil {
		t.Error("expected no rolling 12m return for a 2-bar series")
	}
}

func TestComputeMetrics_RollingAndYears(t *testing.T) {
	closes := make([]float64, 800)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	s := dailySeries(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), closes)
	m, err := ComputeMetrics(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.WorstRolling12M == nil || *m.WorstRolling12M <= 0 {
		t.Fatalf("expected positive worst rolling return, got %v", m.WorstRolling12M)
	}
	if m.MaxDrawdown != 0 {
		t.Errorf("expected no drawdown, got %v", m.MaxDrawdown)
	}
	if m.PositiveYearRatio != 1 {
		t.Errorf("expected every year positive, got %v", m.PositiveYearRatio)
	}
	if m.BestYear == nil || m.WorstYear == nil {
		t.Fatal("expected best and worst year")
	}
}

func TestComputeMetrics_Insufficient(t *testing.T) {
	one := dailySeries(time.Now(), []float64{100})
	if _, err := ComputeMetrics(one); !errors.Is(err, model.ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	same := &model.PriceSeries{Bars: []model.OHLCV{{Time: ts, Close: 1}, {Time: ts, Close: 2}}}
	if _, err := ComputeMetrics(same); !errors.Is(err, model.ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData for zero days, got %v", err)
	}
}
