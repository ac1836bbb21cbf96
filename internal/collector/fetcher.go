package collector

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"TrendScope/internal/model"
)

// Fetcher retrieves raw daily price history for a ticker.
// Implementations return model.ErrNoData when the source has nothing for
// the ticker and period.
type Fetcher interface {
	FetchDaily(ctx context.Context, ticker string, years int) (*model.RawTable, error)
	Name() string
}

// newHTTPClient returns a client that routes through proxyURL when set.
func newHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// lookback returns the [start, end] range covering the last n years.
func lookback(now time.Time, years int) (time.Time, time.Time) {
	return now.AddDate(-years, 0, 0), now
}
