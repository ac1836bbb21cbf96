package scheduler

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"
	"sync/atomic"

	"TrendScope/internal/analysis"
	"TrendScope/internal/model"
	"TrendScope/internal/notifier"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	sendRetries       = 3
	reportConcurrency = 2
)

// Analyzer runs analyses on demand.
type Analyzer interface {
	RunAnalysis(ctx context.Context, ticker string, years int) (*model.AnalysisSnapshot, error)
	RunFullAnalysis(ctx context.Context, ticker string, years int) (*analysis.FullAnalysis, error)
}

// Sender delivers formatted messages.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler manages the cron report and answers chat commands.
type Scheduler struct {
	Cron         *cron.Cron
	Analyzer     Analyzer
	Notifier     Sender
	Watchlist    []string
	DefaultYears int
	Ctx          context.Context
	logger       *zap.Logger

	reporting atomic.Bool
	wg        sync.WaitGroup
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, a Analyzer, sender Sender, watchlist []string, defaultYears int, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		Cron:         cron.New(cron.WithSeconds()),
		Analyzer:     a,
		Notifier:     sender,
		Watchlist:    watchlist,
		DefaultYears: defaultYears,
		Ctx:          ctx,
		logger:       logger,
	}
}

// RegisterAll registers the watchlist report.
func (s *Scheduler) RegisterAll(reportCron string) error {
	if _, err := s.Cron.AddFunc(reportCron, s.reportTask); err != nil {
		return fmt.Errorf("register report task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.logger.Info("scheduler started", zap.Int("entries", len(s.Cron.Entries())))
}

// Stop stops the cron scheduler and waits for running jobs, including
// reports started from a command.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// RunReportNow executes the watchlist report immediately.
func (s *Scheduler) RunReportNow() {
	s.reportTask()
}

func (s *Scheduler) reportTask() {
	if !s.reporting.CompareAndSwap(false, true) {
		s.logger.Info("watchlist report already running, skipping")
		return
	}
	defer s.reporting.Store(false)
	s.runReport()
}

// runReport expects the caller to hold the reporting flag.
func (s *Scheduler) runReport() {
	if len(s.Watchlist) == 0 {
		s.logger.Info("watchlist empty, skipping report")
		return
	}
	s.logger.Info("running watchlist report", zap.Strings("tickers", s.Watchlist))

	results := make([]*analysis.FullAnalysis, len(s.Watchlist))
	failures := map[string]error{}
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(reportConcurrency)
	for i, ticker := range s.Watchlist {
		i, ticker := i, ticker
		g.Go(func() error {
			full, err := s.Analyzer.RunFullAnalysis(s.Ctx, ticker, s.DefaultYears)
			if err != nil {
				s.logger.Error("watchlist analysis failed", zap.String("ticker", ticker), zap.Error(err))
				mu.Lock()
				failures[ticker] = err
				mu.Unlock()
				return nil
			}
			results[i] = full
			return nil
		})
	}
	_ = g.Wait()

	var snaps []*model.AnalysisSnapshot
	for _, full := range results {
		if full == nil {
			continue
		}
		s.trySend(notifier.FormatFullAnalysis(full))
		snaps = append(snaps, full.Snapshot)
	}
	s.trySend(notifier.FormatWatchlistReport(snaps, failures))
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText
	}
	// Group chats append the bot name: /trend@TrendScopeBot
	name, _, _ := strings.Cut(fields[0], "@")

	switch name {
	case "/analyze", "/trend":
		ticker, years, err := s.parseArgs(fields[1:])
		if err != nil {
			return "❌ " + html.EscapeString(err.Error()) + "\n\n" + helpText
		}
		if name == "/trend" {
			snap, err := s.Analyzer.RunAnalysis(ctx, ticker, years)
			if err != nil {
				return failureText(ticker, err)
			}
			return notifier.FormatSnapshot(snap)
		}
		full, err := s.Analyzer.RunFullAnalysis(ctx, ticker, years)
		if err != nil {
			return failureText(ticker, err)
		}
		return notifier.FormatFullAnalysis(full)
	case "/report":
		if len(s.Watchlist) == 0 {
			return "Watchlist is empty."
		}
		if !s.reporting.CompareAndSwap(false, true) {
			return "⏳ Watchlist report is already running."
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.reporting.Store(false)
			s.runReport()
		}()
		return fmt.Sprintf("⏳ Watchlist report started for %d tickers.", len(s.Watchlist))
	default:
		return helpText
	}
}

const helpText = `Available commands:
• /trend TICKER [YEARS] trend regimes and metrics
• /analyze TICKER [YEARS] full analysis with narrative
• /report run the watchlist report in the background`

func (s *Scheduler) parseArgs(args []string) (string, int, error) {
	if len(args) == 0 {
		return "", 0, fmt.Errorf("ticker is required")
	}
	years := s.DefaultYears
	if len(args) > 1 {
		v, err := cast.ToIntE(args[1])
		if err != nil {
			return "", 0, fmt.Errorf("years must be a number, got %q", args[1])
		}
		years = v
	}
	return strings.ToUpper(args[0]), years, nil
}

func failureText(ticker string, err error) string {
	return fmt.Sprintf("❌ Analysis of <b>%s</b> failed: %s", html.EscapeString(ticker), html.EscapeString(err.Error()))
}

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.SendWithRetry(s.Ctx, text, sendRetries); err != nil {
		s.logger.Error("send notification failed", zap.Error(err))
	}
}
