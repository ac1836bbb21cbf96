package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"TrendScope/internal/model"

	"github.com/goccy/go-json"
	"github.com/spf13/cast"
)

// ErrCacheMiss is returned by Load when no fresh entry exists.
var ErrCacheMiss = errors.New("price cache miss")

// BarStore caches raw daily price tables per symbol and lookback.
// It holds fetched inputs only, never analysis results.
type BarStore interface {
	Load(ctx context.Context, symbol string, years int) (*model.RawTable, error)
	Save(ctx context.Context, symbol string, years int, table *model.RawTable) error
	Close() error
}

// payload is the stored form of a RawTable. Index values are unix seconds
// and missing prices are encoded as null.
type payload struct {
	Times   []int64               `json:"t"`
	Columns map[string][]*float64 `json:"c"`
	Fetched int64                 `json:"fetched_at"`
}

func encodeTable(table *model.RawTable, fetched time.Time) ([]byte, error) {
	p := payload{
		Times:   make([]int64, table.Len()),
		Columns: make(map[string][]*float64, len(table.Columns)),
		Fetched: fetched.Unix(),
	}
	for i, idx := range table.Index {
		ts, err := toTime(idx)
		if err != nil {
			return nil, fmt.Errorf("encode index %d: %w", i, err)
		}
		p.Times[i] = ts.Unix()
	}
	for name, values := range table.Columns {
		col := make([]*float64, len(values))
		for i, v := range values {
			v := v
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			col[i] = &v
		}
		p.Columns[name] = col
	}
	return json.Marshal(p)
}

func decodeTable(data []byte) (*model.RawTable, time.Time, error) {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, time.Time{}, fmt.Errorf("decode cached table: %w", err)
	}
	table := &model.RawTable{
		Index:   make([]any, len(p.Times)),
		Columns: make(map[string][]float64, len(p.Columns)),
	}
	for i, ts := range p.Times {
		table.Index[i] = time.Unix(ts, 0).UTC()
	}
	for name, col := range p.Columns {
		values := make([]float64, len(col))
		for i, v := range col {
			if v == nil {
				values[i] = math.NaN()
				continue
			}
			values[i] = *v
		}
		table.Columns[name] = values
	}
	return table, time.Unix(p.Fetched, 0), nil
}

func toTime(v any) (time.Time, error) {
	if t, ok := v.(time.Time); ok {
		return t, nil
	}
	return cast.ToTimeE(v)
}

// NoopStore never caches anything.
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (NoopStore) Load(context.Context, string, int) (*model.RawTable, error) {
	return nil, ErrCacheMiss
}
func (NoopStore) Save(context.Context, string, int, *model.RawTable) error { return nil }
func (NoopStore) Close() error                                             { return nil }
