package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"TrendScope/internal/analysis"
	"TrendScope/internal/model"
	"TrendScope/internal/narrative"
)

type fakeAnalyzer struct {
	mu    sync.Mutex
	fail  map[string]error
	calls []string
	years []int
}

func (f *fakeAnalyzer) RunAnalysis(ctx context.Context, ticker string, years int) (*model.AnalysisSnapshot, error) {
	f.mu.Lock()
	f.calls = append(f.calls, ticker)
	f.years = append(f.years, years)
	f.mu.Unlock()
	if err := f.fail[ticker]; err != nil {
		return nil, err
	}
	return &model.AnalysisSnapshot{
		Ticker: ticker,
		Period: "Last 10 years",
		Trend:  model.TrendSummary{Dominant: model.RegimeUptrend, Recent: model.RegimeUptrend},
	}, nil
}

func (f *fakeAnalyzer) RunFullAnalysis(ctx context.Context, ticker string, years int) (*analysis.FullAnalysis, error) {
	snap, err := f.RunAnalysis(ctx, ticker, years)
	if err != nil {
		return nil, err
	}
	return &analysis.FullAnalysis{Snapshot: snap, Narrative: &narrative.Narrative{FinalNarrative: "the story"}}, nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeSender) SendWithRetry(ctx context.Context, text string, maxRetries int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return f.err
}

func newTestScheduler(a *fakeAnalyzer, s *fakeSender, watchlist ...string) *Scheduler {
	return NewScheduler(context.Background(), a, s, watchlist, 10, nil)
}

func TestHandleCommand(t *testing.T) {
	tests := []struct {
		name      string
		command   string
		wantIn    string
		wantCall  string
		wantYears int
	}{
		{"trend default years", "/trend aapl", "<b>AAPL</b>", "AAPL", 10},
		{"trend with years", "/trend MSFT 7", "<b>MSFT</b>", "MSFT", 7},
		{"analyze", "/analyze infy.ns 5", "the story", "INFY.NS", 5},
		{"bot suffix", "/trend@TrendScopeBot TSLA", "<b>TSLA</b>", "TSLA", 10},
		{"missing ticker", "/trend", "ticker is required", "", 0},
		{"bad years", "/trend AAPL ten", "years must be a number", "", 0},
		{"unknown", "hello", "Available commands", "", 0},
		{"help", "/help", "/analyze TICKER", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &fakeAnalyzer{}
			s := newTestScheduler(a, &fakeSender{})
			reply := s.HandleCommand(context.Background(), tt.command)
			if !strings.Contains(reply, tt.wantIn) {
				t.Fatalf("reply %q does not contain %q", reply, tt.wantIn)
			}
			if tt.wantCall == "" {
				if len(a.calls) != 0 {
					t.Fatalf("unexpected calls %v", a.calls)
				}
				return
			}
			if len(a.calls) != 1 || a.calls[0] != tt.wantCall || a.years[0] != tt.wantYears {
				t.Fatalf("calls = %v years = %v", a.calls, a.years)
			}
		})
	}
}

func TestHandleCommand_Failure(t *testing.T) {
	a := &fakeAnalyzer{fail: map[string]error{"NOPE": errors.New("no data <here>")}}
	s := newTestScheduler(a, &fakeSender{})
	reply := s.HandleCommand(context.Background(), "/analyze NOPE")
	if !strings.Contains(reply, "<b>NOPE</b> failed") || !strings.Contains(reply, "&lt;here&gt;") {
		t.Fatalf("reply = %q", reply)
	}
}

func TestReportTask(t *testing.T) {
	a := &fakeAnalyzer{fail: map[string]error{"BAD": model.ErrNoData}}
	sender := &fakeSender{}
	s := newTestScheduler(a, sender, "AAPL", "BAD", "MSFT")

	reply := s.HandleCommand(context.Background(), "/report")
	if !strings.Contains(reply, "started for 3 tickers") {
		t.Fatalf("reply = %q", reply)
	}
	s.wg.Wait()
	if len(a.calls) != 3 {
		t.Fatalf("calls = %v", a.calls)
	}
	// one full report per successful ticker, then the overview
	if len(sender.sent) != 3 {
		t.Fatalf("sent %d messages", len(sender.sent))
	}
	if !strings.Contains(sender.sent[0], "the story") || !strings.Contains(sender.sent[0], "<b>AAPL</b>") {
		t.Fatalf("first message:\n%s", sender.sent[0])
	}
	overview := sender.sent[2]
	if strings.Index(overview, "AAPL") > strings.Index(overview, "MSFT") {
		t.Fatalf("watchlist order not kept:\n%s", overview)
	}
	if !strings.Contains(overview, "❌ <b>BAD</b>") {
		t.Fatalf("failure missing:\n%s", overview)
	}
}

type blockingAnalyzer struct {
	fakeAnalyzer
	release chan struct{}
}

func (b *blockingAnalyzer) RunFullAnalysis(ctx context.Context, ticker string, years int) (*analysis.FullAnalysis, error) {
	<-b.release
	return b.fakeAnalyzer.RunFullAnalysis(ctx, ticker, years)
}

func TestHandleCommand_ReportDoesNotBlock(t *testing.T) {
	a := &blockingAnalyzer{release: make(chan struct{})}
	sender := &fakeSender{}
	s := NewScheduler(context.Background(), a, sender, []string{"AAPL"}, 10, nil)

	done := make(chan string, 1)
	go func() { done <- s.HandleCommand(context.Background(), "/report") }()
	select {
	case reply := <-done:
		if !strings.Contains(reply, "started") {
			t.Fatalf("reply = %q", reply)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("/report blocked the command handler")
	}

	if reply := s.HandleCommand(context.Background(), "/report"); !strings.Contains(reply, "already running") {
		t.Fatalf("second /report reply = %q", reply)
	}
	// other commands are answered while the report is still running
	if reply := s.HandleCommand(context.Background(), "/trend MSFT"); !strings.Contains(reply, "<b>MSFT</b>") {
		t.Fatalf("reply = %q", reply)
	}

	close(a.release)
	s.wg.Wait()
	if len(sender.sent) != 2 {
		t.Fatalf("sent %d messages", len(sender.sent))
	}
}

func TestReportTask_EmptyWatchlist(t *testing.T) {
	sender := &fakeSender{}
	s := newTestScheduler(&fakeAnalyzer{}, sender)
	s.RunReportNow()
	if len(sender.sent) != 0 {
		t.Fatalf("sent %v", sender.sent)
	}
}

func TestRegisterAll(t *testing.T) {
	s := newTestScheduler(&fakeAnalyzer{}, &fakeSender{})
	if err := s.RegisterAll("0 0 8 * * 1"); err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}
	if len(s.Cron.Entries()) != 1 {
		t.Fatalf("entries = %d", len(s.Cron.Entries()))
	}
	if err := s.RegisterAll("not a cron"); err == nil {
		t.Fatal("expected error for bad expression")
	}
}
