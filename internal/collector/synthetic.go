package collector

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"TrendScope/internal/model"
)

// Profile shapes a synthetic price path.
type Profile struct {
	StartPrice   float64
	AnnualDrift  float64 // expected log return per year
	AnnualVol    float64
	CycleAmpl    float64 // amplitude of a slow multi-year cycle, as a fraction of price
	CyclePeriodY float64
}

// DefaultProfile is a moderately trending, moderately volatile series.
var DefaultProfile = Profile{StartPrice: 100, AnnualDrift: 0.10, AnnualVol: 0.20}

// SyntheticFetcher generates deterministic daily bars for offline runs and
// tests. The same ticker always produces the same path.
type SyntheticFetcher struct {
	Profiles map[string]Profile
	Now      func() time.Time
}

// NewSyntheticFetcher returns a fetcher with profiles for the default benchmarks.
func NewSyntheticFetcher() *SyntheticFetcher {
	return &SyntheticFetcher{
		Profiles: map[string]Profile{
			"^GSPC": {StartPrice: 2000, AnnualDrift: 0.09, AnnualVol: 0.16},
			"^NSEI": {StartPrice: 8000, AnnualDrift: 0.11, AnnualVol: 0.18},
		},
		Now: time.Now,
	}
}

func (f *SyntheticFetcher) Name() string { return "synthetic" }

// FetchDaily returns weekday bars covering the last `years` years.
func (f *SyntheticFetcher) FetchDaily(ctx context.Context, ticker string, years int) (*model.RawTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	profile, ok := f.Profiles[ticker]
	if !ok {
		profile = DefaultProfile
	}
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	end := now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(-years, 0, 0)
	return model.TableFromBars(generateBars(ticker, profile, start, end)), nil
}

func generateBars(ticker string, p Profile, start, end time.Time) []model.OHLCV {
	h := fnv.New64a()
	h.Write([]byte(ticker))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	const dt = 1.0 / 252
	mu := p.AnnualDrift * dt
	sigma := p.AnnualVol * math.Sqrt(dt)

	var bars []model.OHLCV
	logPrice := math.Log(p.StartPrice)
	day := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		open := math.Exp(logPrice)
		logPrice += mu + sigma*rng.NormFloat64()
		c := math.Exp(logPrice)
		if p.CycleAmpl != 0 && p.CyclePeriodY > 0 {
			c *= 1 + p.CycleAmpl*math.Sin(2*math.Pi*float64(day)*dt/p.CyclePeriodY)
		}
		spread := math.Abs(sigma * rng.NormFloat64())
		bars = append(bars, model.OHLCV{
			Time:   d,
			Open:   open,
			High:   math.Max(open, c) * (1 + spread),
			Low:    math.Min(open, c) * (1 - spread),
			Close:  c,
			Volume: 1_000_000,
		})
		day++
	}
	return bars
}
