package calculator

import "TrendScope/internal/model"

// ResampleWeekly converts a daily series into weekly bars (ISO weeks).
// Each weekly bar carries the time and close of the last session in that week.
func ResampleWeekly(daily *model.PriceSeries) *model.PriceSeries {
	out := &model.PriceSeries{Symbol: daily.Symbol}
	if daily.Len() == 0 {
		return out
	}
	var week model.OHLCV
	var weekKey int
	started := false

	for _, d := range daily.Bars {
		year, isoWeek := d.Time.ISOWeek()
		key := year*100 + isoWeek

		if !started || key != weekKey {
			if started {
				out.Bars = append(out.Bars, week)
			}
			week = d
			weekKey = key
			started = true
			continue
		}
		if d.High > week.High {
			week.High = d.High
		}
		if d.Low < week.Low {
			week.Low = d.Low
		}
		week.Close = d.Close
		week.Volume += d.Volume
		week.Time = d.Time
	}
	out.Bars = append(out.Bars, week)
	return out
}

// YearClose is the last close observed in a calendar year.
type YearClose struct {
	Year  int
	Close float64
}

// YearlyCloses returns the last close of each calendar year, oldest first.
func YearlyCloses(series *model.PriceSeries) []YearClose {
	var out []YearClose
	for _, b := range series.Bars {
		y := b.Time.Year()
		if n := len(out); n > 0 && out[n-1].Year == y {
			out[n-1].Close = b.Close
			continue
		}
		out = append(out, YearClose{Year: y, Close: b.Close})
	}
	return out
}
