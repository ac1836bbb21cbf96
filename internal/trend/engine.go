package trend

import (
	"context"
	"fmt"
	"runtime"

	"TrendScope/internal/model"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const weeksPerMonth = 4

// Options configures the rolling-window scan.
type Options struct {
	WindowMonths int
	StepMonths   int
	Parallel     bool
}

// DefaultOptions returns a 12-month window advanced by 3 months.
func DefaultOptions() Options {
	return Options{WindowMonths: 12, StepMonths: 3}
}

// Engine classifies weekly price series into trend regimes.
type Engine struct {
	opts   Options
	logger *zap.Logger
}

// NewEngine validates opts and returns an Engine.
func NewEngine(opts Options, logger *zap.Logger) (*Engine, error) {
	if opts.WindowMonths <= 0 || opts.StepMonths <= 0 {
		return nil, fmt.Errorf("%w: window_months=%d step_months=%d must be positive",
			model.ErrInvalidInput, opts.WindowMonths, opts.StepMonths)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{opts: opts, logger: logger}, nil
}

// WindowSize returns the window length in weekly bars.
func (e *Engine) WindowSize() int { return e.opts.WindowMonths * weeksPerMonth }

// StepSize returns the distance between window starts in weekly bars.
func (e *Engine) StepSize() int { return e.opts.StepMonths * weeksPerMonth }

// WindowCount returns how many full windows fit into n bars: starts run
// 0, step, 2*step... up to and including n-window, giving
// floor((n-window)/step)+1. A window ending exactly on the last bar is
// scored; a trailing partial window never is.
func WindowCount(n, window, step int) int {
	if window <= 0 || step <= 0 || n < window {
		return 0
	}
	return (n-window)/step + 1
}

// Windows scores every full window of a weekly series, oldest first.
func (e *Engine) Windows(ctx context.Context, weekly *model.PriceSeries) ([]model.WindowScore, error) {
	window, step := e.WindowSize(), e.StepSize()
	count := WindowCount(weekly.Len(), window, step)
	if count == 0 {
		return nil, fmt.Errorf("%w: %d weekly bars, window needs %d",
			model.ErrInsufficientData, weekly.Len(), window)
	}

	closes := weekly.Closes()
	out := make([]model.WindowScore, count)
	score := func(i int) {
		start := i * step
		end := start + window
		out[i] = scoreRange(closes[start:end], weekly.Bars[start], weekly.Bars[end-1])
	}

	if !e.opts.Parallel {
		for i := range out {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			score(i)
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range out {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			score(i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func scoreRange(closes []float64, first, last model.OHLCV) model.WindowScore {
	s := ScoreWindow(closes)
	total := s.Total()
	label, conf := Classify(total)
	return model.WindowScore{
		StartDate:       first.Time,
		EndDate:         last.Time,
		DirectionScore:  s.Direction,
		StructureScore:  s.Structure,
		VolatilityScore: s.Volatility,
		TotalScore:      total,
		Label:           label,
		Confidence:      conf,
	}
}

// Run scores a weekly series and summarizes the windows.
func (e *Engine) Run(ctx context.Context, weekly *model.PriceSeries) (*model.TrendSummary, error) {
	windows, err := e.Windows(ctx, weekly)
	if err != nil {
		return nil, err
	}
	summary := Summarize(windows)
	e.logger.Debug("trend windows scored",
		zap.String("ticker", weekly.Symbol),
		zap.Int("windows", len(windows)),
		zap.String("dominant", string(summary.Dominant)),
		zap.String("recent", string(summary.Recent)),
	)
	return &summary, nil
}

// Summarize reduces scored windows to the dominant and most recent regime.
// Ties for dominant go to the tied label seen most recently.
func Summarize(windows []model.WindowScore) model.TrendSummary {
	if len(windows) == 0 {
		return model.TrendSummary{Distribution: map[model.Regime]float64{}}
	}
	counts := make(map[model.Regime]int, len(model.Regimes))
	lastSeen := make(map[model.Regime]int, len(model.Regimes))
	confSum := make(map[model.Regime]float64, len(model.Regimes))
	for i, w := range windows {
		counts[w.Label]++
		lastSeen[w.Label] = i
		confSum[w.Label] += w.Confidence
	}

	var dominant model.Regime
	for _, r := range model.Regimes {
		if counts[r] == 0 {
			continue
		}
		if dominant == "" || counts[r] > counts[dominant] ||
			(counts[r] == counts[dominant] && lastSeen[r] > lastSeen[dominant]) {
			dominant = r
		}
	}

	dist := make(map[model.Regime]float64, len(model.Regimes))
	for _, r := range model.Regimes {
		dist[r] = float64(counts[r]) / float64(len(windows))
	}

	return model.TrendSummary{
		Windows:            windows,
		Dominant:           dominant,
		DominantConfidence: confSum[dominant] / float64(counts[dominant]),
		Distribution:       dist,
		Recent:             windows[len(windows)-1].Label,
	}
}
