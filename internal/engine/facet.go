package engine

import (
	"sort"
	"strconv"

	"github.com/nerrad567/gray-logic-compat/internal/catalog"
)

// Option is one distinct facet value and the number of rows carrying it.
type Option struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// OptionMap maps each facet column to its options, most frequent first.
type OptionMap map[catalog.Column][]Option

// Limit returns a copy of m keeping at most n options per column.
// n <= 0 keeps everything.
func (m OptionMap) Limit(n int) OptionMap {
	out := make(OptionMap, len(m))
	for col, opts := range m {
		if n > 0 && len(opts) > n {
			opts = opts[:n]
		}
		out[col] = append([]Option(nil), opts...)
	}
	return out
}

// counter tallies values in first-seen order.
type counter struct {
	counts map[string]int
	order  []string
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(value string) {
	if _, seen := c.counts[value]; !seen {
		c.order = append(c.order, value)
	}
	c.counts[value]++
}

// options sorts by descending count; ties keep discovery order.
func (c *counter) options() []Option {
	opts := make([]Option, len(c.order))
	for i, v := range c.order {
		opts[i] = Option{Value: v, Count: c.counts[v]}
	}
	sort.SliceStable(opts, func(i, j int) bool { return opts[i].Count > opts[j].Count })
	return opts
}

// DistinctAll computes the options of every facet column.
//
// Each column is counted over the rows passing every filter except the
// column's own, so a selection in one column narrows the options of the
// others while leaving its own alternatives visible.
//
// Parameters:
//   - rows: The rows to aggregate, typically a search result
//   - f: Active column filters
//
// Returns:
//   - OptionMap: One entry per facet column, possibly empty
//   - error: If f is malformed
func DistinctAll(rows []catalog.FlatRow, f Filters) (OptionMap, error) {
	p, err := CompileFilters(f)
	if err != nil {
		return nil, err
	}
	return facets(rows, nil, p, catalog.ColumnsWith(catalog.TraitFacet)), nil
}

// Distinct computes the options of one facet column.
func Distinct(rows []catalog.FlatRow, f Filters, col catalog.Column) ([]Option, error) {
	def, err := catalog.Require(col, catalog.TraitFacet)
	if err != nil {
		return nil, wrapUnknown("facet", err)
	}
	p, err := CompileFilters(f)
	if err != nil {
		return nil, err
	}
	return facets(rows, nil, p, []catalog.ColumnDef{def})[col], nil
}

// facets aggregates cols over rows (or the rows at positions, when non-nil).
//
// A row failing no filter counts towards every column. A row failing
// exactly one filter counts only towards that filter's column, since that
// column's facet ignores its own filter. Rows failing two or more filters
// count nowhere.
func facets(rows []catalog.FlatRow, positions []int, p Predicate, cols []catalog.ColumnDef) OptionMap {
	counters := make(map[catalog.Column]*counter, len(cols))
	for _, def := range cols {
		counters[def.ID] = newCounter()
	}

	visit := func(row *catalog.FlatRow) {
		failed := -1
		for i := range p.filters {
			if p.filters[i].passes(row) {
				continue
			}
			if failed >= 0 {
				return
			}
			failed = i
		}

		if failed >= 0 {
			def := p.filters[failed].def
			if c, ok := counters[def.ID]; ok {
				countValue(c, def.Value(row))
			}
			return
		}
		for _, def := range cols {
			countValue(counters[def.ID], def.Value(row))
		}
	}

	if positions == nil {
		for i := range rows {
			visit(&rows[i])
		}
	} else {
		for _, pos := range positions {
			visit(&rows[pos])
		}
	}

	out := make(OptionMap, len(cols))
	for _, def := range cols {
		out[def.ID] = counters[def.ID].options()
	}
	return out
}

// countValue adds one row's contribution. Array elements repeated within
// one row count once; absent and empty scalars are skipped.
func countValue(c *counter, v catalog.Value) {
	switch v.Kind {
	case catalog.KindBool:
		c.add(strconv.FormatBool(v.Bool))
	case catalog.KindArray:
		if len(v.List) == 1 {
			c.add(v.List[0])
			return
		}
		seen := make(map[string]struct{}, len(v.List))
		for _, item := range v.List {
			if _, dup := seen[item]; dup {
				continue
			}
			seen[item] = struct{}{}
			c.add(item)
		}
	case catalog.KindNumber:
		c.add(strconv.Itoa(v.Num))
	default:
		if v.Valid && v.Str != "" {
			c.add(v.Str)
		}
	}
}
