package table

import (
	"cmp"
	"slices"

	"github.com/rotisserie/eris"

	"github.com/sells-group/petition-cli/internal/model"
)

// DefaultTopN is the number of bars in a chart when none is given.
const DefaultTopN = 10

// Bar is one chart entry.
type Bar struct {
	ID       int64  `json:"id" yaml:"id"`
	Petition string `json:"petition" yaml:"petition"`
	Value    int64  `json:"value" yaml:"value"`
}

// Chart is a top-N ranking of one metric with the mean over every row
// that has a value.
type Chart struct {
	Metric string   `json:"metric" yaml:"metric"`
	Header string   `json:"header" yaml:"header"`
	Bars   []Bar    `json:"bars" yaml:"bars"`
	Mean   *float64 `json:"mean" yaml:"mean"`
}

// TopN ranks rows by a metric column. Rows without a value are dropped;
// ties keep table order.
func TopN(rows []model.Row, key string, n int, desc bool) (*Chart, error) {
	col, ok := Lookup(key)
	if !ok || !col.Metric {
		return nil, eris.Wrapf(ErrUnknownColumn, "chart metric %q", key)
	}
	if n <= 0 {
		n = DefaultTopN
	}

	bars := make([]Bar, 0, len(rows))
	for i := range rows {
		if v := col.Int(&rows[i]); v != nil {
			bars = append(bars, Bar{ID: rows[i].ID, Petition: rows[i].Action, Value: *v})
		}
	}
	slices.SortStableFunc(bars, func(a, b Bar) int {
		if desc {
			return cmp.Compare(b.Value, a.Value)
		}
		return cmp.Compare(a.Value, b.Value)
	})
	if len(bars) > n {
		bars = bars[:n]
	}

	return &Chart{
		Metric: col.Key,
		Header: col.Header,
		Bars:   bars,
		Mean:   Mean(rows, col.Key),
	}, nil
}

// Mean is the arithmetic mean of a metric column over rows with a value,
// or nil when none has one.
func Mean(rows []model.Row, key string) *float64 {
	col, ok := Lookup(key)
	if !ok || !col.Metric {
		return nil
	}
	var (
		sum float64
		n   int
	)
	for i := range rows {
		if v := col.Int(&rows[i]); v != nil {
			sum += float64(*v)
			n++
		}
	}
	if n == 0 {
		return nil
	}
	m := sum / float64(n)
	return &m
}
