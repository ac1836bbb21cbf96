package calculator

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"TrendScope/internal/model"

	"github.com/spf13/cast"
)

var requiredColumns = []string{"open", "high", "low", "close"}

// Normalize validates a raw price table and returns it as a PriceSeries
// sorted ascending by date. Rows without a close are dropped and duplicate
// timestamps keep their last occurrence.
func Normalize(symbol string, table *model.RawTable) (*model.PriceSeries, error) {
	if table.Len() == 0 {
		return nil, fmt.Errorf("%w: empty price table", model.ErrData)
	}

	cols := make(map[string][]float64, len(table.Columns))
	for name, values := range table.Columns {
		cols[strings.ToLower(strings.TrimSpace(name))] = values
	}
	for _, name := range requiredColumns {
		values, ok := cols[name]
		if !ok {
			return nil, fmt.Errorf("%w: missing column %q", model.ErrData, name)
		}
		if len(values) != table.Len() {
			return nil, fmt.Errorf("%w: column %q has %d rows, index has %d",
				model.ErrData, name, len(values), table.Len())
		}
	}
	volume := cols["volume"]
	if volume != nil && len(volume) != table.Len() {
		volume = nil
	}

	bars := make([]model.OHLCV, 0, table.Len())
	for i, idx := range table.Index {
		ts, err := parseIndex(idx)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", model.ErrData, i, err)
		}
		c := cols["close"][i]
		if math.IsNaN(c) {
			continue
		}
		bar := model.OHLCV{
			Time:  ts,
			Open:  cols["open"][i],
			High:  cols["high"][i],
			Low:   cols["low"][i],
			Close: c,
		}
		if volume != nil {
			bar.Volume = volume[i]
		}
		bars = append(bars, bar)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no rows with a close price", model.ErrData)
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })

	// Collapse duplicate timestamps, keeping the row that came last.
	out := bars[:0]
	for _, b := range bars {
		if len(out) > 0 && out[len(out)-1].Time.Equal(b.Time) {
			out[len(out)-1] = b
			continue
		}
		out = append(out, b)
	}

	return &model.PriceSeries{Symbol: symbol, Bars: out}, nil
}

func parseIndex(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case float64:
		// JSON round-trips numeric unix timestamps as float64.
		return time.Unix(int64(t), 0).UTC(), nil
	}
	ts, err := cast.ToTimeE(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable index %v: %w", v, err)
	}
	return ts, nil
}
