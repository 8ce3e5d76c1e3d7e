package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Defaults for AggregateOptions.
const (
	DefaultTopN     = 5
	DefaultKeyWidth = 15
)

var (
	// ErrEmptyDataset is returned when there are no data rows after the header.
	ErrEmptyDataset = errors.New("no data rows after header")
	// ErrUnknownColumn is returned for a requested column that is not in the header.
	ErrUnknownColumn = errors.New("unknown column")
)

// AggregateOptions controls grouping. Empty column names select defaults.
type AggregateOptions struct {
	// GroupKey is the label of the x-axis column. Defaults to the first
	// temporal column, else the first column.
	GroupKey string
	// ValueColumn is the label of the summed column. Defaults to the first
	// monetary column, else the first column other than the group key.
	ValueColumn string
	// TopN caps the category breakdown; <= 0 means DefaultTopN.
	TopN int
	// KeyWidth truncates series keys to this many runes; <= 0 means DefaultKeyWidth.
	KeyWidth int
	// Degraded is the per-column count returned by NormalizeRows. Those cells
	// already hold 0 and are not counted as parsed in the totals.
	Degraded []int
}

// SeriesPoint is one x-axis bucket of the time series.
type SeriesPoint struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

// CategoryTotal is one entry of the top-N breakdown.
type CategoryTotal struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// ColumnStats summarizes a monetary column over all rows.
type ColumnStats struct {
	Sum     float64 `json:"sum"`
	Average float64 `json:"average"`
	Max     float64 `json:"max"`
	Min     float64 `json:"min"`
	// Count is the number of rows; Parsed counts cells that were real numbers.
	Count  int `json:"count"`
	Parsed int `json:"parsed"`
}

// AggregationResult is the chart-ready summary of a dataset.
type AggregationResult struct {
	GroupKey       string                 `json:"group_key"`
	ValueColumn    string                 `json:"value_column"`
	CategorySource string                 `json:"category_source"`
	Rows           int                    `json:"rows"`
	Series         []SeriesPoint          `json:"series"`
	Categories     []CategoryTotal        `json:"categories"`
	Totals         map[string]ColumnStats `json:"totals"`
	// TotalsOrder lists Totals keys in column order.
	TotalsOrder []string `json:"totals_order"`
}

// NormalizeRows returns the data rows below the header with monetary cells
// converted to float64. Fully blank rows are dropped and short rows padded.
// degraded counts, per column index, the monetary cells that were blank or
// did not parse and were replaced by 0.
func NormalizeRows(g Grid, header HeaderSpec, cls Classification) (rows []Row, degraded []int) {
	width := len(header.Labels)
	monetary := make([]bool, width)
	for _, col := range cls.Columns {
		if col.Role == RoleMonetary && col.Index < width {
			monetary[col.Index] = true
		}
	}
	degraded = make([]int, width)
	for i := header.RowIndex + 1; i < len(g); i++ {
		src := g[i]
		if nonBlankCount(src) == 0 {
			continue
		}
		n := width
		if len(src) > n {
			n = len(src)
		}
		row := make(Row, n)
		copy(row, src)
		for j := 0; j < width; j++ {
			if !monetary[j] {
				continue
			}
			f, ok := ParseNumber(row[j])
			if !ok {
				degraded[j]++
			}
			row[j] = f
		}
		rows = append(rows, row)
	}
	return rows, degraded
}

// Aggregate builds the time series, category breakdown and totals.
func Aggregate(rows []Row, labels []string, cls Classification, opt AggregateOptions) (*AggregationResult, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyDataset
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("%w: header has no columns", ErrUnknownColumn)
	}
	topN := opt.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}
	keyWidth := opt.KeyWidth
	if keyWidth <= 0 {
		keyWidth = DefaultKeyWidth
	}

	keyIdx, err := resolveColumn(labels, opt.GroupKey, func() int {
		if c, ok := cls.First(RoleTemporal); ok {
			return c.Index
		}
		return 0
	})
	if err != nil {
		return nil, err
	}
	valIdx, err := resolveColumn(labels, opt.ValueColumn, func() int {
		if c, ok := cls.First(RoleMonetary); ok {
			return c.Index
		}
		for i := range labels {
			if i != keyIdx {
				return i
			}
		}
		return keyIdx
	})
	if err != nil {
		return nil, err
	}

	res := &AggregationResult{
		GroupKey:    labels[keyIdx],
		ValueColumn: labels[valIdx],
		Rows:        len(rows),
		Totals:      map[string]ColumnStats{},
	}

	series := newOrderedSums()
	for _, r := range rows {
		key := truncateRunes(strings.TrimSpace(CellText(cellAt(r, keyIdx))), keyWidth)
		if key == "" {
			continue
		}
		series.add(key, Normalize(cellAt(r, valIdx)))
	}
	for _, k := range series.keys {
		res.Series = append(res.Series, SeriesPoint{Key: k, Value: series.sums[k]})
	}

	catIdx := -1
	for _, c := range cls.WithRole(RoleCategorical) {
		if c.Index != keyIdx && c.Index != valIdx && c.Index < len(labels) {
			catIdx = c.Index
			break
		}
	}
	cats := series
	res.CategorySource = res.GroupKey
	if catIdx >= 0 {
		res.CategorySource = labels[catIdx]
		cats = newOrderedSums()
		for _, r := range rows {
			name := strings.TrimSpace(CellText(cellAt(r, catIdx)))
			if name == "" {
				continue
			}
			cats.add(name, Normalize(cellAt(r, valIdx)))
		}
	}
	res.Categories = cats.top(topN)

	for _, c := range cls.WithRole(RoleMonetary) {
		if c.Index >= len(labels) {
			continue
		}
		if _, dup := res.Totals[c.Label]; dup {
			continue
		}
		st := columnStats(rows, c.Index)
		if c.Index < len(opt.Degraded) {
			st.Parsed -= opt.Degraded[c.Index]
			if st.Parsed < 0 {
				st.Parsed = 0
			}
		}
		res.Totals[c.Label] = st
		res.TotalsOrder = append(res.TotalsOrder, c.Label)
	}
	return res, nil
}

func resolveColumn(labels []string, name string, fallback func() int) (int, error) {
	if name == "" {
		return fallback(), nil
	}
	for i, l := range labels {
		if l == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
}

func columnStats(rows []Row, idx int) ColumnStats {
	st := ColumnStats{Max: math.Inf(-1), Min: math.Inf(1)}
	for _, r := range rows {
		f, ok := ParseNumber(cellAt(r, idx))
		if ok {
			st.Parsed++
		}
		st.Count++
		st.Sum += f
		if f > st.Max {
			st.Max = f
		}
		if f < st.Min {
			st.Min = f
		}
	}
	if st.Count == 0 {
		return ColumnStats{}
	}
	st.Average = st.Sum / float64(st.Count)
	return st
}

// orderedSums accumulates per-key sums remembering first-seen order.
type orderedSums struct {
	keys []string
	sums map[string]float64
}

func newOrderedSums() *orderedSums {
	return &orderedSums{sums: map[string]float64{}}
}

func (o *orderedSums) add(key string, v float64) {
	if _, ok := o.sums[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.sums[key] += v
}

// top returns the n largest sums, descending; ties keep first-seen order.
func (o *orderedSums) top(n int) []CategoryTotal {
	out := make([]CategoryTotal, 0, len(o.keys))
	for _, k := range o.keys {
		out = append(out, CategoryTotal{Name: k, Value: o.sums[k]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	if len(out) > n {
		out = out[:n]
	}
	return out
}
