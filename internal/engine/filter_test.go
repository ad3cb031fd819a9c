package engine

import (
	"errors"
	"testing"

	"github.com/nerrad567/gray-logic-compat/internal/catalog"
)

func TestPasses(t *testing.T) {
	rows := catalog.FlattenAll(threeDevices())
	a, b0, b1, c := &rows[0], &rows[1], &rows[2], &rows[3]

	tests := []struct {
		name    string
		row     *catalog.FlatRow
		filters Filters
		want    bool
	}{
		{"nil filters", a, nil, true},
		{"empty value list is no restriction", a, Filters{catalog.ColumnDeviceModel: {}}, true},
		{"scalar member", a, Filters{catalog.ColumnDeviceModel: {"A", "Z"}}, true},
		{"scalar non-member", b0, Filters{catalog.ColumnDeviceModel: {"A"}}, false},
		{"absent optional scalar fails", a, Filters{catalog.ColumnMatterDeviceType: {"On/Off Plug-in Unit"}}, false},
		{"optional scalar member", b0, Filters{catalog.ColumnMatterDeviceType: {"On/Off Plug-in Unit"}}, true},
		{"array intersection", b1, Filters{catalog.ColumnAppleSupported: {"OnOff", "Level"}}, true},
		{"array disjoint", b1, Filters{catalog.ColumnAppleSupported: {"Level"}}, false},
		{"empty array fails", b0, Filters{catalog.ColumnAppleSupported: {"OnOff"}}, false},
		{"bool true accepted", c, Filters{catalog.ColumnMatterSupported: {true}}, true},
		{"bool false rejected", c, Filters{catalog.ColumnMatterSupported: {false}}, false},
		{"bool both is no-op", a, Filters{catalog.ColumnMatterSupported: {true, false}}, true},
		{"bool from string", a, Filters{catalog.ColumnMatterSupported: {"false"}}, true},
		{"and across columns", b1, Filters{
			catalog.ColumnDeviceModel:     {"B"},
			catalog.ColumnMatterSupported: {true},
			catalog.ColumnAppleSupported:  {"OnOff"},
		}, true},
		{"and across columns one fails", b0, Filters{
			catalog.ColumnDeviceModel:    {"B"},
			catalog.ColumnAppleSupported: {"OnOff"},
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Passes(tt.row, tt.filters)
			if err != nil {
				t.Fatalf("Passes() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Passes() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPasses_EmptyScalarFailsFilter(t *testing.T) {
	rows := catalog.FlattenAll([]catalog.RawDevice{{DeviceInfo: catalog.DeviceInfo{Model: "A"}}})
	got, err := Passes(&rows[0], Filters{catalog.ColumnDeviceBrand: {""}})
	if err != nil {
		t.Fatalf("Passes() error = %v", err)
	}
	if got {
		t.Error("row with empty brand passed a brand filter")
	}
}

func TestCompileFilters_Errors(t *testing.T) {
	tests := []struct {
		name    string
		filters Filters
		want    error
	}{
		{"unknown column", Filters{"nope": {"x"}}, ErrUnknownColumn},
		{"sort-only column", Filters{catalog.ColumnDeviceInfoGroupSize: {"1"}}, ErrUnknownColumn},
		{"bool column with garbage", Filters{catalog.ColumnEwelinkSupported: {"yes please"}}, ErrInvalidInput},
		{"array column with number", Filters{catalog.ColumnEwelinkCapabilities: {3.0}}, ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := CompileFilters(tt.filters); !errors.Is(err, tt.want) {
				t.Errorf("CompileFilters() error = %v, want %v", err, tt.want)
			}
		})
	}
}

// Adding an accepted value to a column's list, or a new column constraint,
// can only keep or shrink the passing set relative to no constraint, and
// narrowing a value list never grows it.
func TestFilters_Monotonic(t *testing.T) {
	rows := catalog.FlattenAll(manyDevices(50))

	count := func(f Filters) int {
		p, err := CompileFilters(f)
		if err != nil {
			t.Fatalf("CompileFilters() error = %v", err)
		}
		n := 0
		for i := range rows {
			if p.Passes(&rows[i]) {
				n++
			}
		}
		return n
	}

	base := Filters{catalog.ColumnDeviceBrand: {"SONOFF", "Aqara"}}
	narrower := Filters{catalog.ColumnDeviceBrand: {"SONOFF"}}
	extraColumn := Filters{
		catalog.ColumnDeviceBrand:     {"SONOFF", "Aqara"},
		catalog.ColumnMatterSupported: {true},
	}

	total := count(nil)
	nBase := count(base)
	if nBase > total {
		t.Errorf("filtered %d > unfiltered %d", nBase, total)
	}
	if n := count(narrower); n > nBase {
		t.Errorf("narrower list passed %d > %d", n, nBase)
	}
	if n := count(extraColumn); n > nBase {
		t.Errorf("extra column passed %d > %d", n, nBase)
	}
}

func TestFilters_Clone(t *testing.T) {
	f := Filters{catalog.ColumnDeviceModel: {"A"}}
	cpy := f.Clone()
	cpy[catalog.ColumnDeviceModel][0] = "B"
	cpy[catalog.ColumnDeviceBrand] = []any{"X"}
	if f[catalog.ColumnDeviceModel][0] != "A" || len(f) != 1 {
		t.Error("Clone() shares memory with the original")
	}
	if Filters(nil).Clone() != nil {
		t.Error("Clone(nil) != nil")
	}
	w := f.Without(catalog.ColumnDeviceModel)
	if len(w) != 0 || len(f) != 1 {
		t.Error("Without() modified the receiver or kept the column")
	}
}
