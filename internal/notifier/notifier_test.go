package notifier

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"TrendScope/internal/analysis"
	"TrendScope/internal/model"
	"TrendScope/internal/narrative"

	"github.com/goccy/go-json"
)

type fakeTelegram struct {
	mu       sync.Mutex
	sent     []map[string]string
	failures int
	updates  string
	offsets  []string
}

func (f *fakeTelegram) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		if f.failures > 0 {
			f.failures--
			http.Error(w, "flood", http.StatusTooManyRequests)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var msg map[string]string
		_ = json.Unmarshal(body, &msg)
		f.sent = append(f.sent, msg)
		w.Write([]byte(`{"ok":true}`))
	case strings.HasSuffix(r.URL.Path, "/getUpdates"):
		f.offsets = append(f.offsets, r.URL.Query().Get("offset"))
		w.Write([]byte(f.updates))
	default:
		http.NotFound(w, r)
	}
}

func newTestNotifier(t *testing.T, fake *fakeTelegram) *TelegramNotifier {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	n := NewTelegramNotifier("TOKEN", "42", "", nil)
	n.BaseURL = srv.URL
	n.Backoff = time.Millisecond
	return n
}

func TestSend(t *testing.T) {
	fake := &fakeTelegram{}
	n := newTestNotifier(t, fake)
	if err := n.Send(context.Background(), "<b>hi</b>"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(fake.sent) != 1 {
		t.Fatalf("sent %d messages", len(fake.sent))
	}
	msg := fake.sent[0]
	if msg["chat_id"] != "42" || msg["parse_mode"] != "HTML" || msg["text"] != "<b>hi</b>" {
		t.Fatalf("payload = %v", msg)
	}
}

func TestSendWithRetry(t *testing.T) {
	t.Run("recovers", func(t *testing.T) {
		fake := &fakeTelegram{failures: 2}
		n := newTestNotifier(t, fake)
		if err := n.SendWithRetry(context.Background(), "x", 3); err != nil {
			t.Fatalf("SendWithRetry: %v", err)
		}
		if len(fake.sent) != 1 {
			t.Fatalf("sent %d", len(fake.sent))
		}
	})
	t.Run("exhausted", func(t *testing.T) {
		fake := &fakeTelegram{failures: 10}
		n := newTestNotifier(t, fake)
		err := n.SendWithRetry(context.Background(), "x", 2)
		if err == nil || !strings.Contains(err.Error(), "all 3 attempts") {
			t.Fatalf("err = %v", err)
		}
	})
	t.Run("cancelled", func(t *testing.T) {
		fake := &fakeTelegram{failures: 10}
		n := newTestNotifier(t, fake)
		n.Backoff = time.Hour
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()
		if err := n.SendWithRetry(ctx, "x", 5); !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestPoll(t *testing.T) {
	fake := &fakeTelegram{updates: `{"ok":true,"result":[
		{"update_id":7,"message":{"text":" /trend AAPL "}},
		{"update_id":8},
		{"update_id":9,"message":{"text":"/noop"}}]}`}
	n := newTestNotifier(t, fake)

	var got []string
	handler := func(ctx context.Context, cmd string) string {
		got = append(got, cmd)
		if cmd == "/noop" {
			return ""
		}
		return "reply to " + cmd
	}
	next, err := n.poll(context.Background(), n.Client, 5, 0, handler)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if next != 10 {
		t.Fatalf("next offset = %d", next)
	}
	if len(got) != 2 || got[0] != "/trend AAPL" {
		t.Fatalf("commands = %q", got)
	}
	if len(fake.sent) != 1 || fake.sent[0]["text"] != "reply to /trend AAPL" {
		t.Fatalf("sent = %v", fake.sent)
	}
	if fake.offsets[0] != "5" {
		t.Fatalf("offset param = %s", fake.offsets[0])
	}
}

func TestPoll_Rejected(t *testing.T) {
	fake := &fakeTelegram{updates: `{"ok":false}`}
	n := newTestNotifier(t, fake)
	next, err := n.poll(context.Background(), n.Client, 3, 0, func(context.Context, string) string { return "" })
	if err == nil || next != 3 {
		t.Fatalf("next = %d err = %v", next, err)
	}
}

func testSnapshot() *model.AnalysisSnapshot {
	best, worst, w12 := 2020, 2022, -35.5
	return &model.AnalysisSnapshot{
		Ticker:    "AT&T",
		Benchmark: "^GSPC",
		Period:    "Last 10 years",
		Trend: model.TrendSummary{
			Dominant:           model.RegimeUptrend,
			DominantConfidence: 71.2,
			Distribution:       map[model.Regime]float64{model.RegimeUptrend: 0.6, model.RegimeSideways: 0.25, model.RegimeDowntrend: 0.15},
			Recent:             model.RegimeDowntrend,
		},
		Metrics: model.PerformanceMetrics{
			CAGR: 0.1234, PriceMultiple: 3.2, AnnualizedVolatility: 28.4, MaxDrawdown: -41.2,
			PositiveYearRatio: 0.7, WorstRolling12M: &w12, BestYear: &best, WorstYear: &worst,
		},
		BenchmarkMetrics:  &model.PerformanceMetrics{CAGR: 0.1, AnnualizedVolatility: 17},
		Flags:             model.SummaryFlags{OutperformedBenchmark: true},
		VolatilitySummary: "moderate",
		RedFlags:          []string{"Deep historical drawdown of -41.2% <worst>"},
	}
}

func TestFormatSnapshot(t *testing.T) {
	out := FormatSnapshot(testSnapshot())
	for _, want := range []string{
		"<b>AT&amp;T</b>",
		"Dominant: 📈 UPTREND (confidence 71.2)",
		"Recent: 📉 DOWNTREND",
		"UPTREND: 60%",
		"CAGR: +12.34% | Multiple: 3.20x",
		"Worst 12m: -35.5%",
		"Best year: 2020 | Worst year: 2022",
		"<b>vs ^GSPC</b>",
		"outperformed",
		"&lt;worst&gt;",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestFormatSnapshot_NoBenchmark(t *testing.T) {
	snap := testSnapshot()
	snap.BenchmarkMetrics = nil
	if out := FormatSnapshot(snap); !strings.Contains(out, "Benchmark ^GSPC: not evaluated") {
		t.Fatalf("output:\n%s", out)
	}
}

func TestFormatFullAnalysis_Truncates(t *testing.T) {
	full := &analysis.FullAnalysis{
		Snapshot:  testSnapshot(),
		Narrative: &narrative.Narrative{FinalNarrative: strings.Repeat("word ", 2000)},
	}
	out := FormatFullAnalysis(full)
	if n := utf8.RuneCountInString(out); n != MaxMessageLen {
		t.Fatalf("length = %d", n)
	}
	if !strings.HasSuffix(out, "…\n") {
		t.Fatal("missing truncation marker")
	}
}

var partialEntity = regexp.MustCompile(`&[#a-zA-Z0-9]*$`)

func TestFormatFullAnalysis_NeverEndsInPartialEntity(t *testing.T) {
	for pad := 0; pad < 12; pad++ {
		text := strings.Repeat("x", pad) + strings.Repeat("It's the company's trend. ", 400)
		full := &analysis.FullAnalysis{
			Snapshot:  testSnapshot(),
			Narrative: &narrative.Narrative{FinalNarrative: text},
		}
		out := FormatFullAnalysis(full)
		if n := utf8.RuneCountInString(out); n > MaxMessageLen {
			t.Fatalf("pad=%d: length = %d", pad, n)
		}
		body := strings.TrimSuffix(strings.TrimSuffix(out, "\n"), "…")
		if m := partialEntity.FindString(body); m != "" {
			t.Fatalf("pad=%d: message ends with partial entity %q", pad, m)
		}
		if !strings.Contains(out, "It&#39;s") {
			t.Fatalf("pad=%d: apostrophes not escaped", pad)
		}
	}
}

func TestTruncate_BacksOffPartialMarkup(t *testing.T) {
	tests := []struct {
		in    string
		limit int
		want  string
	}{
		{"abc &#39; def", 8, "abc \n…"},
		{"abc &amp; def", 11, "abc &amp;\n…"},
		{"abc <b>bold</b>", 7, "abc \n…"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.limit); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
		}
	}
}

func TestFormatWatchlistReport(t *testing.T) {
	out := FormatWatchlistReport(
		[]*model.AnalysisSnapshot{testSnapshot()},
		map[string]error{"ZZZ": model.ErrNoData, "AAA": errors.New("timeout")},
	)
	if !strings.Contains(out, "<b>AT&amp;T</b> UPTREND (71)") {
		t.Fatalf("output:\n%s", out)
	}
	if strings.Index(out, "AAA") > strings.Index(out, "ZZZ") {
		t.Fatalf("failures not sorted:\n%s", out)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("got %q", got)
	}
	got := Truncate("ééééééééé", 5)
	if utf8.RuneCountInString(got) != 5 || !strings.HasPrefix(got, "ééé") {
		t.Fatalf("got %q", got)
	}
}
