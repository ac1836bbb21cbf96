package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"TrendScope/internal/analysis"
	"TrendScope/internal/llm"
	"TrendScope/internal/model"
	"TrendScope/internal/narrative"

	"github.com/gin-gonic/gin"
)

type fakeAnalyzer struct {
	err       error
	gotTicker string
	gotYears  int
}

func (f *fakeAnalyzer) RunAnalysis(ctx context.Context, ticker string, years int) (*model.AnalysisSnapshot, error) {
	f.gotTicker, f.gotYears = ticker, years
	if f.err != nil {
		return nil, f.err
	}
	return &model.AnalysisSnapshot{Ticker: ticker, Years: years, Trend: model.TrendSummary{Dominant: model.RegimeUptrend}}, nil
}

func (f *fakeAnalyzer) RunFullAnalysis(ctx context.Context, ticker string, years int) (*analysis.FullAnalysis, error) {
	snap, err := f.RunAnalysis(ctx, ticker, years)
	if err != nil {
		return nil, err
	}
	return &analysis.FullAnalysis{Snapshot: snap, Narrative: &narrative.Narrative{FinalNarrative: "story"}}, nil
}

func newTestServer(a Analyzer) *Server {
	gin.SetMode(gin.TestMode)
	return NewServer(ServerConfig{DefaultYears: 10}, a, nil)
}

func do(t *testing.T, s *Server, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %s: %v (%s)", path, err, w.Body.String())
	}
	return w, body
}

func TestHealth(t *testing.T) {
	w, body := do(t, newTestServer(&fakeAnalyzer{}), "/healthz")
	if w.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("got %d %v", w.Code, body)
	}
}

func TestAnalysis(t *testing.T) {
	a := &fakeAnalyzer{}
	w, body := do(t, newTestServer(a), "/api/v1/analysis/AAPL?years=7")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %v", w.Code, body)
	}
	if a.gotTicker != "AAPL" || a.gotYears != 7 {
		t.Fatalf("called with %s/%d", a.gotTicker, a.gotYears)
	}
	data := body["data"].(map[string]any)
	if data["ticker"] != "AAPL" {
		t.Fatalf("data = %v", data)
	}
	trend := data["trend"].(map[string]any)
	if trend["dominant"] != "UPTREND" {
		t.Fatalf("trend = %v", trend)
	}
}

func TestAnalysis_DefaultYears(t *testing.T) {
	a := &fakeAnalyzer{}
	w, _ := do(t, newTestServer(a), "/api/v1/analysis/MSFT")
	if w.Code != http.StatusOK || a.gotYears != 10 {
		t.Fatalf("status = %d years = %d", w.Code, a.gotYears)
	}
}

func TestAnalysis_BadYears(t *testing.T) {
	a := &fakeAnalyzer{}
	w, body := do(t, newTestServer(a), "/api/v1/analysis/MSFT?years=ten")
	if w.Code != http.StatusBadRequest || body["error"] != true {
		t.Fatalf("status = %d body = %v", w.Code, body)
	}
	if a.gotTicker != "" {
		t.Fatal("analyzer should not be called")
	}
}

func TestNarrative(t *testing.T) {
	w, body := do(t, newTestServer(&fakeAnalyzer{}), "/api/v1/analysis/INFY.NS/narrative?years=5")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %v", w.Code, body)
	}
	data := body["data"].(map[string]any)
	n := data["narrative"].(map[string]any)
	if n["final_narrative"] != "story" {
		t.Fatalf("narrative = %v", n)
	}
}

func TestErrorStatus(t *testing.T) {
	exhausted := &llm.AllProvidersExhaustedError{Attempts: 2, Last: errors.New("503")}
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid", fmt.Errorf("%w: years", model.ErrInvalidInput), http.StatusBadRequest},
		{"no data", fmt.Errorf("fetch X: %w", model.ErrNoData), http.StatusNotFound},
		{"insufficient", model.ErrInsufficientData, http.StatusUnprocessableEntity},
		{"bad data", model.ErrData, http.StatusUnprocessableEntity},
		{"configuration", llm.ErrConfiguration, http.StatusServiceUnavailable},
		{"exhausted", &narrative.StepError{Step: narrative.StepBenchmark, Err: exhausted}, http.StatusBadGateway},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := do(t, newTestServer(&fakeAnalyzer{err: tt.err}), "/api/v1/analysis/X/narrative")
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
			if body["message"] != tt.err.Error() {
				t.Fatalf("message = %v", body["message"])
			}
		})
	}
}
