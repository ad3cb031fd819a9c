package engine

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/nerrad567/gray-logic-compat/internal/catalog"
)

// Filters maps a filterable column to its accepted values.
//
// Values are JSON scalars: strings for scalar and array columns, booleans
// for boolean columns ("true"/"false" strings are also accepted there).
// A missing or empty value list places no restriction on the column.
type Filters map[catalog.Column][]any

// Clone returns a copy of f that shares no slices with it.
func (f Filters) Clone() Filters {
	if f == nil {
		return nil
	}
	out := make(Filters, len(f))
	for col, values := range f {
		out[col] = append([]any(nil), values...)
	}
	return out
}

// Without returns a copy of f with col removed.
func (f Filters) Without(col catalog.Column) Filters {
	out := f.Clone()
	delete(out, col)
	return out
}

// columnFilter is one validated, non-empty column constraint.
type columnFilter struct {
	def     catalog.ColumnDef
	strings map[string]struct{}
	bools   [2]bool // accepted false, accepted true
}

// Predicate is a compiled set of column filters.
type Predicate struct {
	filters []columnFilter
}

// CompileFilters validates f against the column registry.
//
// Returns:
//   - Predicate: The compiled non-empty filters
//   - error: ErrUnknownColumn or ErrInvalidInput (wrapped) on bad keys or values
func CompileFilters(f Filters) (Predicate, error) {
	cols := make([]catalog.Column, 0, len(f))
	for col := range f {
		cols = append(cols, col)
	}
	// Deterministic order keeps validation errors stable.
	sort.Slice(cols, func(i, j int) bool { return cols[i] < cols[j] })

	var p Predicate
	for _, col := range cols {
		def, err := catalog.Require(col, catalog.TraitFilter)
		if err != nil {
			return Predicate{}, fmt.Errorf("%w: filter: %w", ErrUnknownColumn, err)
		}
		values := f[col]
		if len(values) == 0 {
			continue
		}

		cf := columnFilter{def: def}
		if def.Kind == catalog.KindBool {
			for _, v := range values {
				b, ok := asBool(v)
				if !ok {
					return Predicate{}, fmt.Errorf("%w: filter %q: %v is not a boolean", ErrInvalidInput, col, v)
				}
				if b {
					cf.bools[1] = true
				} else {
					cf.bools[0] = true
				}
			}
		} else {
			cf.strings = make(map[string]struct{}, len(values))
			for _, v := range values {
				s, ok := v.(string)
				if !ok {
					return Predicate{}, fmt.Errorf("%w: filter %q: %v is not a string", ErrInvalidInput, col, v)
				}
				cf.strings[s] = struct{}{}
			}
		}
		p.filters = append(p.filters, cf)
	}

	return p, nil
}

// Empty reports whether the predicate accepts every row.
func (p Predicate) Empty() bool {
	return len(p.filters) == 0
}

// Passes reports whether row satisfies every column filter.
func (p Predicate) Passes(row *catalog.FlatRow) bool {
	for i := range p.filters {
		if !p.filters[i].passes(row) {
			return false
		}
	}
	return true
}

// Passes reports whether row satisfies f.
// It returns an error when f is malformed.
func Passes(row *catalog.FlatRow, f Filters) (bool, error) {
	p, err := CompileFilters(f)
	if err != nil {
		return false, err
	}
	return p.Passes(row), nil
}

func (cf *columnFilter) passes(row *catalog.FlatRow) bool {
	v := cf.def.Value(row)
	switch v.Kind {
	case catalog.KindBool:
		if v.Bool {
			return cf.bools[1]
		}
		return cf.bools[0]
	case catalog.KindArray:
		for _, item := range v.List {
			if _, ok := cf.strings[item]; ok {
				return true
			}
		}
		return false
	default:
		// An absent or empty scalar never satisfies a non-empty filter.
		if !v.Valid || v.Str == "" {
			return false
		}
		_, ok := cf.strings[v.Str]
		return ok
	}
}

func asBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return false, false
		}
		return parsed, true
	default:
		return false, false
	}
}
