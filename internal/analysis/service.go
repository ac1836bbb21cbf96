package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"TrendScope/internal/calculator"
	"TrendScope/internal/collector"
	"TrendScope/internal/llm"
	"TrendScope/internal/model"
	"TrendScope/internal/narrative"
	"TrendScope/internal/trend"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	MinYears = 5
	MaxYears = 15
)

// Narrator turns analysis facts into a narrative.
type Narrator interface {
	Run(ctx context.Context, facts narrative.Facts) (*narrative.Narrative, error)
}

// Options configures benchmark selection.
type Options struct {
	// Benchmarks maps a ticker suffix (e.g. ".NS") to its benchmark index.
	Benchmarks       map[string]string
	DefaultBenchmark string
}

// DefaultOptions benchmarks NSE listings against NIFTY 50 and everything
// else against the S&P 500.
func DefaultOptions() Options {
	return Options{
		Benchmarks:       map[string]string{".NS": "^NSEI"},
		DefaultBenchmark: "^GSPC",
	}
}

// FullAnalysis is a snapshot together with its generated narrative.
type FullAnalysis struct {
	Snapshot  *model.AnalysisSnapshot `json:"snapshot"`
	Narrative *narrative.Narrative    `json:"narrative"`
}

// Service runs the analysis pipeline for one ticker at a time.
// It is safe for concurrent use.
type Service struct {
	fetcher  collector.Fetcher
	engine   *trend.Engine
	narrator Narrator
	opts     Options
	logger   *zap.Logger
	now      func() time.Time
}

// NewService wires the pipeline. narrator may be nil, in which case only
// RunAnalysis is available.
func NewService(fetcher collector.Fetcher, engine *trend.Engine, narrator Narrator, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.DefaultBenchmark == "" {
		opts.DefaultBenchmark = DefaultOptions().DefaultBenchmark
	}
	return &Service{
		fetcher:  fetcher,
		engine:   engine,
		narrator: narrator,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// BenchmarkFor returns the benchmark index for ticker. The longest matching
// suffix wins.
func (s *Service) BenchmarkFor(ticker string) string {
	suffixes := make([]string, 0, len(s.opts.Benchmarks))
	for suffix := range s.opts.Benchmarks {
		suffixes = append(suffixes, suffix)
	}
	sort.Slice(suffixes, func(i, j int) bool { return len(suffixes[i]) > len(suffixes[j]) })
	for _, suffix := range suffixes {
		if strings.HasSuffix(ticker, suffix) {
			return s.opts.Benchmarks[suffix]
		}
	}
	return s.opts.DefaultBenchmark
}

// RunAnalysis computes the deterministic snapshot for ticker over the last
// `years` years. A benchmark failure is logged and leaves BenchmarkMetrics nil.
func (s *Service) RunAnalysis(ctx context.Context, ticker string, years int) (*model.AnalysisSnapshot, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, fmt.Errorf("%w: ticker is required", model.ErrInvalidInput)
	}
	if years < MinYears || years > MaxYears {
		return nil, fmt.Errorf("%w: years must be within [%d, %d], got %d",
			model.ErrInvalidInput, MinYears, MaxYears, years)
	}

	runID := uuid.NewString()
	log := s.logger.With(zap.String("run_id", runID), zap.String("ticker", ticker))
	benchmark := s.BenchmarkFor(ticker)
	start := time.Now()

	var (
		daily      *model.PriceSeries
		benchDaily *model.PriceSeries
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		daily, err = s.load(gctx, ticker, years)
		return err
	})
	g.Go(func() error {
		series, err := s.load(gctx, benchmark, years)
		if err != nil {
			if gctx.Err() == nil {
				log.Warn("benchmark unavailable", zap.String("benchmark", benchmark), zap.Error(err))
			}
			return nil
		}
		benchDaily = series
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary, err := s.engine.Run(ctx, calculator.ResampleWeekly(daily))
	if err != nil {
		return nil, fmt.Errorf("trend analysis for %s: %w", ticker, err)
	}
	metrics, err := calculator.ComputeMetrics(daily)
	if err != nil {
		return nil, fmt.Errorf("metrics for %s: %w", ticker, err)
	}

	snap := &model.AnalysisSnapshot{
		RunID:       runID,
		Ticker:      ticker,
		Benchmark:   benchmark,
		Years:       years,
		Period:      fmt.Sprintf("Last %d years", years),
		GeneratedAt: s.now().UTC(),
		Trend:       *summary,
		Metrics:     metrics,
	}
	if benchDaily != nil {
		if bm, err := calculator.ComputeMetrics(benchDaily); err != nil {
			log.Warn("benchmark metrics failed", zap.String("benchmark", benchmark), zap.Error(err))
		} else {
			snap.BenchmarkMetrics = &bm
		}
	}
	Summarize(snap)

	log.Info("analysis complete",
		zap.String("dominant", string(summary.Dominant)),
		zap.String("recent", string(summary.Recent)),
		zap.Int("windows", len(summary.Windows)),
		zap.Float64("cagr_pct", metrics.CAGRPct()),
		zap.Duration("duration", time.Since(start)),
	)
	return snap, nil
}

// RunFullAnalysis computes the snapshot and then generates its narrative.
// Analysis failures abort before any model is called.
func (s *Service) RunFullAnalysis(ctx context.Context, ticker string, years int) (*FullAnalysis, error) {
	if s.narrator == nil {
		return nil, fmt.Errorf("%w: narrative generation is not configured", llm.ErrConfiguration)
	}
	snap, err := s.RunAnalysis(ctx, ticker, years)
	if err != nil {
		return nil, err
	}
	n, err := s.narrator.Run(ctx, narrative.FactsFromSnapshot(snap))
	if err != nil {
		return nil, fmt.Errorf("narrative for %s: %w", snap.Ticker, err)
	}
	return &FullAnalysis{Snapshot: snap, Narrative: n}, nil
}

func (s *Service) load(ctx context.Context, ticker string, years int) (*model.PriceSeries, error) {
	table, err := s.fetcher.FetchDaily(ctx, ticker, years)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ticker, err)
	}
	series, err := calculator.Normalize(ticker, table)
	if err != nil {
		return nil, fmt.Errorf("normalize %s: %w", ticker, err)
	}
	return series, nil
}
