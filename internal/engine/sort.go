package engine

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/nerrad567/gray-logic-compat/internal/catalog"
)

// SortSpec orders rows by one column.
type SortSpec struct {
	ID   catalog.Column `json:"id"`
	Desc bool           `json:"desc,omitempty"`
}

type sortKey struct {
	def  catalog.ColumnDef
	desc bool
}

func compileSort(specs []SortSpec) ([]sortKey, error) {
	keys := make([]sortKey, 0, len(specs))
	for _, s := range specs {
		def, err := catalog.Require(s.ID, catalog.TraitSort)
		if err != nil {
			return nil, wrapUnknown("sort", err)
		}
		keys = append(keys, sortKey{def: def, desc: s.Desc})
	}
	return keys, nil
}

// sortPositions stably sorts row positions by keys. Absent values are the
// smallest, so they come first ascending and last descending.
func sortPositions(rows []catalog.FlatRow, positions []int, keys []sortKey) {
	if len(keys) == 0 {
		return
	}
	slices.SortStableFunc(positions, func(a, b int) int {
		for _, k := range keys {
			c := compareValues(k.def.Value(&rows[a]), k.def.Value(&rows[b]))
			if c == 0 {
				continue
			}
			if k.desc {
				return -c
			}
			return c
		}
		return 0
	})
}

// SortRows returns a stably sorted copy of rows.
func SortRows(rows []catalog.FlatRow, specs []SortSpec) ([]catalog.FlatRow, error) {
	keys, err := compileSort(specs)
	if err != nil {
		return nil, err
	}
	positions := identity(len(rows))
	sortPositions(rows, positions, keys)
	return gather(rows, positions), nil
}

// compareValues orders two values of the same column.
// Strings compare by bytes, booleans false < true, numbers numerically,
// lists by length then element-wise.
func compareValues(a, b catalog.Value) int {
	aNull, bNull := a.IsNull(), b.IsNull()
	switch {
	case aNull && bNull:
		return 0
	case aNull:
		return -1
	case bNull:
		return 1
	}

	switch a.Kind {
	case catalog.KindBool:
		return compareBool(a.Bool, b.Bool)
	case catalog.KindNumber:
		return cmp.Compare(a.Num, b.Num)
	case catalog.KindArray:
		return compareLists(a.List, b.List)
	default:
		return strings.Compare(a.Str, b.Str)
	}
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

func compareLists(a, b []string) int {
	if c := cmp.Compare(len(a), len(b)); c != 0 {
		return c
	}
	for i := range a {
		if c := strings.Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}

func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// gather returns deep copies of the rows at positions.
func gather(rows []catalog.FlatRow, positions []int) []catalog.FlatRow {
	out := make([]catalog.FlatRow, len(positions))
	for i, pos := range positions {
		out[i] = rows[pos].DeepCopy()
	}
	return out
}

func wrapUnknown(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnknownColumn, what, err)
}
