package engine

import (
	"slices"
	"strings"

	"github.com/nerrad567/gray-logic-compat/internal/catalog"
)

// Separators used to build merge keys. listSep cannot occur in catalogue
// text, so ["a,b"] and ["a","b"] produce different keys.
const (
	keySep  = "|"
	listSep = "\x1f"
)

type mergeKeyFunc func(row *catalog.FlatRow) string

func mergeKeyer(cols []catalog.Column) (mergeKeyFunc, error) {
	defs := make([]catalog.ColumnDef, 0, len(cols))
	for _, col := range cols {
		def, ok := catalog.Lookup(col)
		if !ok {
			return nil, wrapUnknown("merge", catalog.ErrUnknownColumn)
		}
		defs = append(defs, def)
	}

	return func(row *catalog.FlatRow) string {
		parts := make([]string, len(defs))
		for i, def := range defs {
			v := def.Value(row)
			if v.Kind == catalog.KindArray {
				sorted := slices.Clone(v.List)
				slices.Sort(sorted)
				parts[i] = strings.Join(sorted, listSep)
				continue
			}
			parts[i] = v.String()
		}
		return strings.Join(parts, keySep)
	}, nil
}

// runs calls fn(start, end) for each maximal run of consecutive rows with
// equal keys, end exclusive.
func runs(rows []catalog.FlatRow, key mergeKeyFunc, fn func(start, end int)) {
	i := 0
	for i < len(rows) {
		k := key(&rows[i])
		j := i + 1
		for j < len(rows) && key(&rows[j]) == k {
			j++
		}
		fn(i, j)
		i = j
	}
}

// ComputeSpans groups consecutive rows with equal values in mergeColumns.
// The first row of each run carries the run length and the rest carry 0.
// Grouping is positional: reordering rows changes the runs.
//
// Parameters:
//   - rows: Rows in display order
//   - mergeColumns: Columns forming the merge key
//
// Returns:
//   - []int: One span per row; the non-zero spans sum to len(rows)
//   - error: ErrUnknownColumn (wrapped) for an unregistered column
func ComputeSpans(rows []catalog.FlatRow, mergeColumns []catalog.Column) ([]int, error) {
	key, err := mergeKeyer(mergeColumns)
	if err != nil {
		return nil, err
	}

	spans := make([]int, len(rows))
	runs(rows, key, func(start, end int) {
		spans[start] = end - start
	})
	return spans, nil
}

// SpanPolicy decides how rows are spanned for a set of visible columns.
type SpanPolicy struct {
	MergeColumns []catalog.Column
}

// DefaultSpanPolicy merges on the registry's merge columns.
func DefaultSpanPolicy() SpanPolicy {
	return SpanPolicy{MergeColumns: catalog.DefaultMergeColumns()}
}

// Spans returns the spans for rows.
//
// When every visible column is a merge column, spanning is disabled and
// every row gets span 1; otherwise the whole table could collapse into a
// single cell. An empty visible set means all columns are shown.
func (p SpanPolicy) Spans(rows []catalog.FlatRow, visibleColumns []catalog.Column) ([]int, error) {
	if p.onlyMergeColumns(visibleColumns) {
		spans := make([]int, len(rows))
		for i := range spans {
			spans[i] = 1
		}
		return spans, nil
	}
	return ComputeSpans(rows, p.MergeColumns)
}

func (p SpanPolicy) onlyMergeColumns(visible []catalog.Column) bool {
	if len(visible) == 0 {
		return false
	}
	for _, col := range visible {
		if !slices.Contains(p.MergeColumns, col) {
			return false
		}
	}
	return true
}

// MergeRange is a rectangular cell range, inclusive, 0-based.
type MergeRange struct {
	StartRow int `json:"startRow"`
	StartCol int `json:"startCol"`
	EndRow   int `json:"endRow"`
	EndCol   int `json:"endCol"`
}

// MergeRanges returns the vertical merges for a sheet whose data rows start
// at startRow, one range per run longer than one row and per column index.
func MergeRanges(rows []catalog.FlatRow, startRow int, columnIndexes []int) []MergeRange {
	// The default merge columns are all registered.
	key, _ := mergeKeyer(catalog.DefaultMergeColumns())

	var out []MergeRange
	runs(rows, key, func(start, end int) {
		if end-start < 2 {
			return
		}
		for _, c := range columnIndexes {
			out = append(out, MergeRange{
				StartRow: startRow + start,
				StartCol: c,
				EndRow:   startRow + end - 1,
				EndCol:   c,
			})
		}
	})
	return out
}

// SortByDeviceInfoGroup returns rows ordered so that rows sharing model,
// brand, category and eWeLink capabilities are adjacent. Ties are broken by
// row ID.
func SortByDeviceInfoGroup(rows []catalog.FlatRow) []catalog.FlatRow {
	out := catalog.CopyRows(rows)
	slices.SortStableFunc(out, func(a, b catalog.FlatRow) int {
		return compareDeviceGroup(&a, &b)
	})
	return out
}

func sortPositionsByDeviceGroup(rows []catalog.FlatRow, positions []int) {
	slices.SortStableFunc(positions, func(a, b int) int {
		return compareDeviceGroup(&rows[a], &rows[b])
	})
}

func compareDeviceGroup(a, b *catalog.FlatRow) int {
	if c := strings.Compare(a.DeviceModel, b.DeviceModel); c != 0 {
		return c
	}
	if c := strings.Compare(a.DeviceBrand, b.DeviceBrand); c != 0 {
		return c
	}
	if c := strings.Compare(a.DeviceCategory, b.DeviceCategory); c != 0 {
		return c
	}
	if c := compareLists(a.EwelinkCapabilities, b.EwelinkCapabilities); c != 0 {
		return c
	}
	return strings.Compare(a.RowID, b.RowID)
}
