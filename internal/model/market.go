package model

import "time"

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// RawTable is a price table as delivered by a data source, before
// validation. Index values may be time.Time, date strings or unix seconds
// and need not be ordered.
type RawTable struct {
	Index   []any                `json:"index"`
	Columns map[string][]float64 `json:"columns"`
}

// Len returns the number of rows in the index.
func (t *RawTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Index)
}

// TableFromBars builds a RawTable from already-typed bars.
func TableFromBars(bars []OHLCV) *RawTable {
	t := &RawTable{
		Index: make([]any, len(bars)),
		Columns: map[string][]float64{
			"open":   make([]float64, len(bars)),
			"high":   make([]float64, len(bars)),
			"low":    make([]float64, len(bars)),
			"close":  make([]float64, len(bars)),
			"volume": make([]float64, len(bars)),
		},
	}
	for i, b := range bars {
		t.Index[i] = b.Time
		t.Columns["open"][i] = b.Open
		t.Columns["high"][i] = b.High
		t.Columns["low"][i] = b.Low
		t.Columns["close"][i] = b.Close
		t.Columns["volume"][i] = b.Volume
	}
	return t
}

// PriceSeries is a validated, time-ordered price history.
// Timestamps are strictly increasing. Treat it as read-only once built.
type PriceSeries struct {
	Symbol string
	Bars   []OHLCV
}

// Len returns the number of bars.
func (s *PriceSeries) Len() int { return len(s.Bars) }

// Closes returns a fresh slice of close prices.
func (s *PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		closes[i] = b.Close
	}
	return closes
}

// First returns the oldest bar. The series must not be empty.
func (s *PriceSeries) First() OHLCV { return s.Bars[0] }

// Last returns the most recent bar. The series must not be empty.
func (s *PriceSeries) Last() OHLCV { return s.Bars[len(s.Bars)-1] }
