package collector

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"TrendScope/internal/model"

	"github.com/goccy/go-json"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultYahooBaseURL = "https://query1.finance.yahoo.com"

// YahooFetcher implements Fetcher using the Yahoo Finance chart API.
// Prices are adjusted for splits and dividends with the adjclose series.
type YahooFetcher struct {
	Client    *http.Client
	BaseURL   string
	SymbolMap map[string]string // maps internal symbol to Yahoo ticker

	limiter *rate.Limiter
	now     func() time.Time
	logger  *zap.Logger
}

// NewYahooFetcher creates a fetcher that issues at most one request per interval.
func NewYahooFetcher(proxyURL string, interval time.Duration, logger *zap.Logger) *YahooFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &YahooFetcher{
		Client:  newHTTPClient(proxyURL, 30*time.Second),
		BaseURL: defaultYahooBaseURL,
		SymbolMap: map[string]string{
			"SPX500": "^GSPC",
			"SPX":    "^GSPC",
			"SP500":  "^GSPC",
			"NIFTY":  "^NSEI",
		},
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
		logger:  logger,
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

func (f *YahooFetcher) yahooSymbol(symbol string) string {
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

// yahooChart is the response structure from the Yahoo Finance chart API.
// Prices are nullable, so they are decoded loosely and converted with cast.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []any `json:"open"`
					High   []any `json:"high"`
					Low    []any `json:"low"`
					Close  []any `json:"close"`
					Volume []any `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []any `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// toFloat converts a nullable JSON number, mapping null to NaN.
func toFloat(v any) float64 {
	if v == nil {
		return math.NaN()
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return math.NaN()
	}
	return f
}

func valueAt(values []any, i int) float64 {
	if i >= len(values) {
		return math.NaN()
	}
	return toFloat(values[i])
}

// FetchDaily downloads adjusted daily bars covering the last `years` years.
func (f *YahooFetcher) FetchDaily(ctx context.Context, ticker string, years int) (*model.RawTable, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start, end := lookback(f.now(), years)
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&period1=%d&period2=%d&events=div%%2Csplits",
		f.BaseURL, url.PathEscape(f.yahooSymbol(ticker)), start.Unix(), end.Unix())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch %s: %w", ticker, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: yahoo has no ticker %s", model.ErrNoData, ticker)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("%w: yahoo api error for %s: %s", model.ErrNoData, ticker, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 ||
		len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: yahoo returned no bars for %s (%dy)", model.ErrNoData, ticker, years)
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	var adj []any
	if len(result.Indicators.AdjClose) > 0 {
		adj = result.Indicators.AdjClose[0].AdjClose
	}

	n := len(result.Timestamp)
	table := &model.RawTable{
		Index: make([]any, n),
		Columns: map[string][]float64{
			"open":   make([]float64, n),
			"high":   make([]float64, n),
			"low":    make([]float64, n),
			"close":  make([]float64, n),
			"volume": make([]float64, n),
		},
	}
	for i, ts := range result.Timestamp {
		c := valueAt(quote.Close, i)
		factor := 1.0
		if a := valueAt(adj, i); !math.IsNaN(a) && !math.IsNaN(c) && c != 0 {
			factor = a / c
		}
		table.Index[i] = time.Unix(ts, 0).UTC()
		table.Columns["open"][i] = valueAt(quote.Open, i) * factor
		table.Columns["high"][i] = valueAt(quote.High, i) * factor
		table.Columns["low"][i] = valueAt(quote.Low, i) * factor
		table.Columns["close"][i] = c * factor
		table.Columns["volume"][i] = valueAt(quote.Volume, i)
	}

	f.logger.Debug("yahoo bars fetched", zap.String("ticker", ticker), zap.Int("rows", n))
	return table, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
